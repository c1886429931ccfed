package bookings_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/bookings"
	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
	"github.com/illusia-ry-organization/illusia-ry/internal/users"
)

var (
	tentID  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	ownerID = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001")
	adminID = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
)

func rng(t *testing.T, start, end string) daterange.Range {
	t.Helper()
	r, err := daterange.Parse(start, end)
	require.NoError(t, err)
	return r
}

type memBookings struct {
	rows    map[uuid.UUID]bookings.Booking
	created int
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[uuid.UUID]bookings.Booking{}}
}

func (m *memBookings) Create(_ context.Context, userID uuid.UUID, r daterange.Range, lines []bookings.ReservationInput) (bookings.Booking, error) {
	m.created++
	b := bookings.Booking{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    bookings.StatusPending,
		Range:     r,
		CreatedAt: time.Now(),
	}
	for _, line := range lines {
		b.Items = append(b.Items, bookings.Item{
			ID: uuid.New(), ItemID: line.ItemID, Quantity: line.Quantity, IsActive: true,
		})
	}
	m.rows[b.ID] = b
	return b, nil
}

func (m *memBookings) Get(_ context.Context, id uuid.UUID) (bookings.Booking, error) {
	b, ok := m.rows[id]
	if !ok {
		return bookings.Booking{}, common.NotFoundError("booking")
	}
	return b, nil
}

func (m *memBookings) ListForUser(_ context.Context, userID uuid.UUID, _, _ int) ([]bookings.Booking, int64, error) {
	out := make([]bookings.Booking, 0)
	for _, b := range m.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memBookings) List(_ context.Context, f bookings.ListFilter) ([]bookings.Booking, int64, error) {
	out := make([]bookings.Booking, 0)
	for _, b := range m.rows {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (m *memBookings) Decide(_ context.Context, id uuid.UUID, status string, decidedBy uuid.UUID) (bookings.Booking, error) {
	b, ok := m.rows[id]
	if !ok {
		return bookings.Booking{}, common.NotFoundError("booking")
	}
	if b.Status != bookings.StatusPending {
		return bookings.Booking{}, common.NewAppError("INVALID_STATE", "booking is no longer pending", 409, nil)
	}
	now := time.Now()
	b.Status = status
	b.DecidedBy = &decidedBy
	b.DecidedAt = &now
	m.rows[id] = b
	return b, nil
}

func (m *memBookings) Cancel(_ context.Context, id uuid.UUID) (bookings.Booking, error) {
	b, ok := m.rows[id]
	if !ok {
		return bookings.Booking{}, common.NotFoundError("booking")
	}
	if !b.Open() {
		return bookings.Booking{}, common.NewAppError("INVALID_STATE", "booking cannot be cancelled", 409, nil)
	}
	b.Status = bookings.StatusCancelled
	for i := range b.Items {
		b.Items[i].IsActive = false
	}
	m.rows[id] = b
	return b, nil
}

type memCarts struct {
	states  map[string]cart.State
	deleted []string
}

func (m *memCarts) Load(_ context.Context, userID string) (cart.State, error) {
	return m.states[userID], nil
}

func (m *memCarts) Delete(_ context.Context, userID string) error {
	m.deleted = append(m.deleted, userID)
	delete(m.states, userID)
	return nil
}

type stubAccounts struct {
	users map[uuid.UUID]users.User
}

func (s stubAccounts) Get(_ context.Context, id uuid.UUID) (users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return users.User{}, common.NotFoundError("user")
	}
	return u, nil
}

type stubSnapshots struct {
	snap availability.Snapshot
}

func (s stubSnapshots) Load(context.Context) (availability.Snapshot, error) {
	return s.snap, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) { c.calls++ }

type memEventStore struct {
	topics []string
}

func (m *memEventStore) InsertEvent(_ context.Context, topic string, payload []byte) (events.Event, error) {
	m.topics = append(m.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, Payload: payload}, nil
}

type fixture struct {
	svc        *bookings.Service
	store      *memBookings
	carts      *memCarts
	snapshots  *countingInvalidator
	eventStore *memEventStore
}

func newFixture(stock int, committed cart.State) fixture {
	store := newMemBookings()
	carts := &memCarts{states: map[string]cart.State{ownerID.String(): committed}}
	inv := &countingInvalidator{}
	eventStore := &memEventStore{}
	snap := availability.Snapshot{Items: map[uuid.UUID]availability.ItemStock{
		tentID: {ItemID: tentID, Name: "tent", Quantity: stock, Visible: true},
	}}
	svc := &bookings.Service{
		Store:        store,
		Carts:        carts,
		Availability: stubSnapshots{snap: snap},
		Accounts: stubAccounts{users: map[uuid.UUID]users.User{
			ownerID: {ID: ownerID, Role: users.RoleUser, Status: users.StatusActive},
			adminID: {ID: adminID, Role: users.RoleAdmin, Status: users.StatusActive},
		}},
		Snapshots: inv,
		Bus:       &events.Bus{Store: eventStore},
	}
	return fixture{svc: svc, store: store, carts: carts, snapshots: inv, eventStore: eventStore}
}

func committedCart(t *testing.T, qty int) cart.State {
	return cart.State{Committed: cart.Cart{
		Lines: []cart.Line{{ItemID: tentID, ItemName: "tent", Quantity: qty}},
		Range: rng(t, "2024-06-01", "2024-06-05"),
	}}
}

func TestCreateFromCartSucceedsAndClearsCart(t *testing.T) {
	f := newFixture(3, committedCart(t, 2))

	b, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	require.NoError(t, err)
	require.Equal(t, bookings.StatusPending, b.Status)
	require.Len(t, b.Items, 1)
	require.Equal(t, 2, b.Items[0].Quantity)

	require.Equal(t, []string{ownerID.String()}, f.carts.deleted)
	require.Equal(t, 1, f.snapshots.calls)
	require.Equal(t, []string{events.TopicBookingCreated}, f.eventStore.topics)
}

func TestCreateFromCartRechecksAvailability(t *testing.T) {
	f := newFixture(1, committedCart(t, 2))

	_, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAVAILABLE", appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Contains(t, details, tentID.String())

	// the cart survives a failed submission
	require.Empty(t, f.carts.deleted)
	require.Zero(t, f.store.created)
}

func TestCreateFromCartRejectsUnapprovedAccount(t *testing.T) {
	f := newFixture(3, committedCart(t, 2))
	pending := uuid.New()
	f.svc.Accounts = stubAccounts{users: map[uuid.UUID]users.User{
		pending: {ID: pending, Role: users.RoleUser, Status: users.StatusPending},
	}}

	_, err := f.svc.CreateFromCart(context.Background(), pending.String())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestCreateFromCartRejectsOpenEditSession(t *testing.T) {
	state := committedCart(t, 2)
	state.Edit = &cart.EditState{Local: state.Committed.Lines, Candidate: state.Committed.Range}
	f := newFixture(3, state)

	_, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EDIT_STATE", appErr.Code)
}

func TestCreateFromCartRejectsEmptyCart(t *testing.T) {
	f := newFixture(3, cart.State{})

	_, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestDecideApprovesPendingBooking(t *testing.T) {
	f := newFixture(3, committedCart(t, 2))
	b, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	require.NoError(t, err)

	decided, err := f.svc.Decide(context.Background(), adminID, b.ID, bookings.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, bookings.StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	require.Equal(t, adminID, *decided.DecidedBy)
	require.Contains(t, f.eventStore.topics, events.TopicBookingApproved)

	// second decision loses against the status guard
	_, err = f.svc.Decide(context.Background(), adminID, b.ID, bookings.StatusRejected)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestDecideRejectsUnknownStatus(t *testing.T) {
	f := newFixture(3, committedCart(t, 2))

	_, err := f.svc.Decide(context.Background(), adminID, uuid.New(), "cancelled")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCancelHiddenFromStrangers(t *testing.T) {
	f := newFixture(3, committedCart(t, 2))
	b, err := f.svc.CreateFromCart(context.Background(), ownerID.String())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), uuid.New(), false, b.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	cancelled, err := f.svc.Cancel(context.Background(), ownerID, false, b.ID)
	require.NoError(t, err)
	require.Equal(t, bookings.StatusCancelled, cancelled.Status)
	require.Contains(t, f.eventStore.topics, events.TopicBookingCancelled)
}
