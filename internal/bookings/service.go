package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
	"github.com/illusia-ry-organization/illusia-ry/internal/common"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
	"github.com/illusia-ry-organization/illusia-ry/internal/events"
	"github.com/illusia-ry-organization/illusia-ry/internal/lock"
	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
	"github.com/illusia-ry-organization/illusia-ry/internal/users"
)

// Store is the persistence surface the service needs; Repo is the
// Postgres implementation.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, rng daterange.Range, lines []ReservationInput) (Booking, error)
	Get(ctx context.Context, id uuid.UUID) (Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Booking, int64, error)
	List(ctx context.Context, f ListFilter) ([]Booking, int64, error)
	Decide(ctx context.Context, id uuid.UUID, status string, decidedBy uuid.UUID) (Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (Booking, error)
}

// CartStore reads and clears the submitting user's cart.
type CartStore interface {
	Load(ctx context.Context, userID string) (cart.State, error)
	Delete(ctx context.Context, userID string) error
}

// Accounts resolves the submitting user's account standing.
type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (users.User, error)
}

// Invalidator drops the cached availability snapshot after reservation
// state changes.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Auditor records admin decisions.
type Auditor interface {
	Record(ctx context.Context, actorID uuid.UUID, action, targetType, targetID string, metadata any)
}

// Service implements booking submission and the approval workflow.
type Service struct {
	Store        Store
	Carts        CartStore
	Availability cart.SnapshotSource
	Accounts     Accounts
	Snapshots    Invalidator
	Bus          *events.Bus
	Audit        Auditor
	Lock         lock.Locker
	LockTTL      time.Duration
	MaxDays      int
	Log          zerolog.Logger
}

func (s *Service) maxDays() int {
	if s.MaxDays > 0 {
		return s.MaxDays
	}
	return daterange.MaxBookingDays
}

// CreateFromCart submits the caller's committed cart as a pending booking.
// Every line is re-checked against a fresh availability snapshot first; on
// success the reservations are written and the cart is cleared. A per-user
// lock keeps a double-clicked submit from booking the same cart twice.
func (s *Service) CreateFromCart(ctx context.Context, userID string) (Booking, error) {
	var b Booking
	run := func(ctx context.Context) error {
		var err error
		b, err = s.createFromCart(ctx, userID)
		return err
	}
	var err error
	if s.Lock.Client != nil {
		err = s.Lock.WithLock(ctx, "booking:lock:"+userID, s.LockTTL, run)
	} else {
		err = run(ctx)
	}
	if obs.BookingsCreatedTotal != nil {
		obs.BookingsCreatedTotal.WithLabelValues(createOutcome(err)).Inc()
	}
	return b, err
}

func createOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Code == "UNAVAILABLE" {
		return "rejected"
	}
	return "error"
}

func (s *Service) createFromCart(ctx context.Context, userID string) (Booking, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Booking{}, common.ValidationError("invalid user id")
	}
	account, err := s.Accounts.Get(ctx, uid)
	if err != nil {
		return Booking{}, err
	}
	if !account.CanAct() {
		return Booking{}, common.ForbiddenError("account must be approved before booking")
	}

	state, err := s.Carts.Load(ctx, userID)
	if err != nil {
		return Booking{}, err
	}
	if state.Edit != nil {
		return Booking{}, common.NewAppError("EDIT_STATE", "finish the open edit session before submitting", 409, nil)
	}
	committed := state.Committed
	if committed.IsEmpty() {
		return Booking{}, common.ValidationError("cart is empty")
	}
	rng := committed.Range
	if rng.IsZero() {
		return Booking{}, common.ValidationError("cart has no date range")
	}
	if rng.Days() > s.maxDays() {
		return Booking{}, common.NewAppError("RANGE_TOO_LONG", "booking range exceeds the maximum length", 422, nil)
	}

	snap, err := s.Availability.Load(ctx)
	if err != nil {
		return Booking{}, err
	}
	checker := availability.Checker{Snapshot: snap}
	failures := map[string]string{}
	lines := make([]ReservationInput, 0, len(committed.Lines))
	for _, line := range committed.Lines {
		if line.Quantity <= 0 {
			continue
		}
		res := checker.Check(line.ItemID, line.Quantity, rng, availability.CheckOptions{})
		if !res.OK() {
			failures[line.ItemID.String()] = res.Message
			continue
		}
		lines = append(lines, ReservationInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	if len(failures) > 0 {
		return Booking{}, &common.AppError{Code: "UNAVAILABLE", Message: "some items are no longer available for the selected dates", HTTPStatus: 409, Details: failures}
	}
	if len(lines) == 0 {
		return Booking{}, common.ValidationError("cart is empty")
	}

	b, err := s.Store.Create(ctx, uid, rng, lines)
	if err != nil {
		return Booking{}, err
	}
	if err := s.Carts.Delete(ctx, userID); err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("cart not cleared after booking")
	}
	if s.Snapshots != nil {
		s.Snapshots.Invalidate(ctx)
	}
	s.emit(ctx, events.TopicBookingCreated, b)
	s.Log.Info().
		Str("booking_id", b.ID.String()).
		Str("user_id", userID).
		Int("lines", len(b.Items)).
		Msg("booking created")
	return b, nil
}

// Get returns one booking. Non-admin callers only see their own.
func (s *Service) Get(ctx context.Context, callerID uuid.UUID, isAdmin bool, id uuid.UUID) (Booking, error) {
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if !isAdmin && b.UserID != callerID {
		return Booking{}, common.NotFoundError("booking")
	}
	return b, nil
}

// ListForUser returns the caller's bookings.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Booking, int64, error) {
	page, perPage = clampPage(page, perPage)
	return s.Store.ListForUser(ctx, userID, page, perPage)
}

// List returns bookings for the admin console.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	if f.Status != "" {
		switch f.Status {
		case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		default:
			return nil, 0, common.ValidationError("unknown status filter")
		}
	}
	f.Page, f.PerPage = clampPage(f.Page, f.PerPage)
	return s.Store.List(ctx, f)
}

// Decide approves or rejects a pending booking.
func (s *Service) Decide(ctx context.Context, actorID, id uuid.UUID, status string) (Booking, error) {
	if !ValidDecision(status) {
		return Booking{}, common.ValidationError("status must be approved or rejected")
	}
	b, err := s.Store.Decide(ctx, id, status, actorID)
	if err != nil {
		return Booking{}, err
	}
	if status == StatusRejected && s.Snapshots != nil {
		s.Snapshots.Invalidate(ctx)
	}
	if s.Audit != nil {
		s.Audit.Record(ctx, actorID, "booking.decided", "booking", id.String(), map[string]string{"status": status})
	}
	topic := events.TopicBookingApproved
	if status == StatusRejected {
		topic = events.TopicBookingRejected
	}
	s.emit(ctx, topic, b)
	if obs.BookingStatusTotal != nil {
		obs.BookingStatusTotal.WithLabelValues(status).Inc()
	}
	return b, nil
}

// Cancel withdraws an open booking and releases its reservations. The
// owner may cancel their own; admins may cancel any.
func (s *Service) Cancel(ctx context.Context, callerID uuid.UUID, isAdmin bool, id uuid.UUID) (Booking, error) {
	existing, err := s.Store.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if !isAdmin && existing.UserID != callerID {
		return Booking{}, common.NotFoundError("booking")
	}
	b, err := s.Store.Cancel(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if s.Snapshots != nil {
		s.Snapshots.Invalidate(ctx)
	}
	s.emit(ctx, events.TopicBookingCancelled, b)
	if obs.BookingStatusTotal != nil {
		obs.BookingStatusTotal.WithLabelValues(StatusCancelled).Inc()
	}
	return b, nil
}

func (s *Service) emit(ctx context.Context, topic string, b Booking) {
	if s.Bus == nil {
		return
	}
	_, err := s.Bus.Emit(ctx, topic, map[string]any{
		"booking_id": b.ID,
		"user_id":    b.UserID,
		"status":     b.Status,
		"start_date": b.Range.StartString(),
		"end_date":   b.Range.EndString(),
	})
	if err != nil {
		s.Log.Error().Err(err).Str("topic", topic).Msg("booking event not emitted")
	}
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
