package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

type memUsers struct {
	rows map[uuid.UUID]User
}

func newMemUsers(seed ...User) *memUsers {
	m := &memUsers{rows: map[uuid.UUID]User{}}
	for _, u := range seed {
		m.rows[u.ID] = u
	}
	return m
}

func (m *memUsers) Get(_ context.Context, id uuid.UUID) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, common.NotFoundError("user")
	}
	return u, nil
}

func (m *memUsers) Upsert(_ context.Context, id uuid.UUID, email string) (User, bool, error) {
	if u, ok := m.rows[id]; ok {
		u.Email = email
		m.rows[id] = u
		return u, false, nil
	}
	u := User{ID: id, Email: email, Role: RoleUser, Status: StatusPending}
	m.rows[id] = u
	return u, true, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, in ProfileInput) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, common.NotFoundError("user")
	}
	u.DisplayName, u.Phone = in.DisplayName, in.Phone
	m.rows[id] = u
	return u, nil
}

func (m *memUsers) List(_ context.Context, status, _ string, _, _ int) ([]User, int64, error) {
	out := make([]User, 0)
	for _, u := range m.rows {
		if status == "" || u.Status == status {
			out = append(out, u)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memUsers) SetRole(_ context.Context, id uuid.UUID, role string) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, common.NotFoundError("user")
	}
	u.Role = role
	m.rows[id] = u
	return u, nil
}

func (m *memUsers) SetStatus(_ context.Context, id uuid.UUID, status string) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, common.NotFoundError("user")
	}
	u.Status = status
	m.rows[id] = u
	return u, nil
}

func (m *memUsers) AdminIDs(context.Context) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0)
	for _, u := range m.rows {
		if u.IsAdmin() && u.CanAct() {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (m *memUsers) EmailFor(_ context.Context, id uuid.UUID) (string, error) {
	u, ok := m.rows[id]
	if !ok {
		return "", common.NotFoundError("user")
	}
	return u.Email, nil
}

type memEventStore struct {
	topics []string
}

func (m *memEventStore) InsertEvent(_ context.Context, topic string, payload []byte) (events.Event, error) {
	m.topics = append(m.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, Payload: payload}, nil
}

func fixtures() (head, admin, member User) {
	head = User{ID: uuid.New(), Email: "head@example.com", Role: RoleHeadAdmin, Status: StatusActive}
	admin = User{ID: uuid.New(), Email: "admin@example.com", Role: RoleAdmin, Status: StatusActive}
	member = User{ID: uuid.New(), Email: "member@example.com", Role: RoleUser, Status: StatusPending}
	return
}

func TestEnsureRegisteredEmitsOnceForNewUser(t *testing.T) {
	store := newMemUsers()
	eventStore := &memEventStore{}
	svc := &Service{Store: store, Bus: &events.Bus{Store: eventStore}}
	id := uuid.New()

	u, err := svc.EnsureRegistered(context.Background(), id, "new@example.com")
	require.NoError(t, err)
	require.Equal(t, StatusPending, u.Status)
	require.Equal(t, []string{events.TopicUserRegistered}, eventStore.topics)

	// second call is an idempotent refresh, no second event
	_, err = svc.EnsureRegistered(context.Background(), id, "new@example.com")
	require.NoError(t, err)
	require.Len(t, eventStore.topics, 1)
}

func TestSetRoleRequiresHeadAdmin(t *testing.T) {
	head, admin, member := fixtures()
	svc := &Service{Store: newMemUsers(head, admin, member)}

	_, err := svc.SetRole(context.Background(), admin.ID, member.ID, RoleAdmin)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	u, err := svc.SetRole(context.Background(), head.ID, member.ID, RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, u.Role)
}

func TestSetRoleRejectsSelfChange(t *testing.T) {
	head, _, _ := fixtures()
	svc := &Service{Store: newMemUsers(head)}

	_, err := svc.SetRole(context.Background(), head.ID, head.ID, RoleUser)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestSetStatusAdminApprovesMember(t *testing.T) {
	head, admin, member := fixtures()
	eventStore := &memEventStore{}
	svc := &Service{Store: newMemUsers(head, admin, member), Bus: &events.Bus{Store: eventStore}}

	u, err := svc.SetStatus(context.Background(), admin.ID, member.ID, StatusApproved)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, u.Status)
	require.Contains(t, eventStore.topics, events.TopicUserStatusSet)
}

func TestSetStatusOnAdminNeedsHeadAdmin(t *testing.T) {
	head, admin, _ := fixtures()
	other := User{ID: uuid.New(), Email: "other@example.com", Role: RoleAdmin, Status: StatusActive}
	svc := &Service{Store: newMemUsers(head, admin, other)}

	_, err := svc.SetStatus(context.Background(), admin.ID, other.ID, StatusDeactivated)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	u, err := svc.SetStatus(context.Background(), head.ID, other.ID, StatusDeactivated)
	require.NoError(t, err)
	require.Equal(t, StatusDeactivated, u.Status)
}

func TestRoleForBlocksRejectedAccounts(t *testing.T) {
	_, _, member := fixtures()
	member.Status = StatusRejected
	svc := &Service{Store: newMemUsers(member)}

	role, active, err := svc.RoleFor(context.Background(), member.ID.String())
	require.NoError(t, err)
	require.Equal(t, RoleUser, role)
	require.False(t, active)
}

func TestRoleForAllowsPendingAccounts(t *testing.T) {
	_, _, member := fixtures()
	svc := &Service{Store: newMemUsers(member)}

	_, active, err := svc.RoleFor(context.Background(), member.ID.String())
	require.NoError(t, err)
	require.True(t, active)
}
