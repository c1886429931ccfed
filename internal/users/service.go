package users

import (
	"context"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

// Store is the persistence surface the service needs; Repo is the Postgres
// implementation.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (User, error)
	Upsert(ctx context.Context, id uuid.UUID, email string) (User, bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (User, error)
	List(ctx context.Context, status, search string, page, perPage int) ([]User, int64, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) (User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (User, error)
	AdminIDs(ctx context.Context) ([]uuid.UUID, error)
	EmailFor(ctx context.Context, id uuid.UUID) (string, error)
}

// Auditor records admin actions; the audit package provides it.
type Auditor interface {
	Record(ctx context.Context, actorID uuid.UUID, action, targetType, targetID string, metadata any)
}

// Service enforces the role and status rules around account management.
type Service struct {
	Store    Store
	Bus      *events.Bus
	Validate *validator.Validate
	Audit    Auditor
	Log      zerolog.Logger
}

// EnsureRegistered creates the profile row on a user's first authenticated
// request. New registrations start pending and are announced to admins.
func (s *Service) EnsureRegistered(ctx context.Context, id uuid.UUID, email string) (User, error) {
	u, created, err := s.Store.Upsert(ctx, id, email)
	if err != nil {
		return User{}, err
	}
	if created {
		s.Log.Info().Str("user_id", id.String()).Msg("new user registered")
		if s.Bus != nil {
			_, _ = s.Bus.Emit(ctx, events.TopicUserRegistered, map[string]any{
				"user_id": u.ID, "email": u.Email, "status": u.Status,
			})
		}
	}
	return u, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.Store.Get(ctx, id)
}

// UpdateProfile updates the caller's own display fields.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (User, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return User{}, common.ValidationError(err.Error())
		}
	}
	return s.Store.UpdateProfile(ctx, id, in)
}

// List returns users for the admin console.
func (s *Service) List(ctx context.Context, status, search string, page, perPage int) ([]User, int64, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, common.ValidationError("unknown status filter")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.Store.List(ctx, status, search, page, perPage)
}

// SetRole changes a user's role. Only a head admin may assign roles, and
// never their own, so there is always at least one head admin left.
func (s *Service) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role string) (User, error) {
	if !ValidRole(role) {
		return User{}, common.ValidationError("unknown role")
	}
	actor, err := s.Store.Get(ctx, actorID)
	if err != nil {
		return User{}, err
	}
	if actor.Role != RoleHeadAdmin {
		return User{}, common.ForbiddenError("only a head admin may change roles")
	}
	if actorID == targetID {
		return User{}, common.ForbiddenError("cannot change your own role")
	}
	u, err := s.Store.SetRole(ctx, targetID, role)
	if err != nil {
		return User{}, err
	}
	if s.Audit != nil {
		s.Audit.Record(ctx, actorID, "user.role_set", "user", targetID.String(), map[string]string{"role": role})
	}
	return u, nil
}

// SetStatus moves a user's account status. Admins handle ordinary users;
// admin and head admin accounts may only be touched by a head admin, and
// nobody changes their own status.
func (s *Service) SetStatus(ctx context.Context, actorID, targetID uuid.UUID, status string) (User, error) {
	if !ValidStatus(status) {
		return User{}, common.ValidationError("unknown status")
	}
	if actorID == targetID {
		return User{}, common.ForbiddenError("cannot change your own status")
	}
	actor, err := s.Store.Get(ctx, actorID)
	if err != nil {
		return User{}, err
	}
	if !actor.IsAdmin() {
		return User{}, common.ForbiddenError("admin role required")
	}
	target, err := s.Store.Get(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if target.IsAdmin() && actor.Role != RoleHeadAdmin {
		return User{}, common.ForbiddenError("only a head admin may change an admin's status")
	}

	u, err := s.Store.SetStatus(ctx, targetID, status)
	if err != nil {
		return User{}, err
	}
	if s.Audit != nil {
		s.Audit.Record(ctx, actorID, "user.status_set", "user", targetID.String(), map[string]string{"status": status})
	}
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicUserStatusSet, map[string]any{
			"user_id": u.ID, "email": u.Email, "status": u.Status,
		})
	}
	return u, nil
}

// RoleFor satisfies the auth middleware's RoleSource: the database role
// wins over whatever the token claims. Rejected and deactivated accounts
// are shut out entirely; pending accounts pass here and are stopped at the
// booking gate instead.
func (s *Service) RoleFor(ctx context.Context, userID string) (string, bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", false, common.ValidationError("invalid user id")
	}
	u, err := s.Store.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	return u.Role, !u.Blocked(), nil
}

// EmailFor and AdminIDs pass through to the store for the notify package.
func (s *Service) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.Store.EmailFor(ctx, userID)
}

// AdminIDs returns active admin account ids.
func (s *Service) AdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.Store.AdminIDs(ctx)
}
