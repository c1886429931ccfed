package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
)

// LineSource resolves the display fields of a catalogue item into a cart
// line. The items package provides the production implementation.
type LineSource interface {
	Line(ctx context.Context, itemID uuid.UUID) (Line, error)
}

// SnapshotSource supplies the reservation snapshot checks run against.
// Implemented by availability.Source.
type SnapshotSource interface {
	Load(ctx context.Context) (availability.Snapshot, error)
}

// Service loads a user's persisted cart state, runs an engine operation
// against a fresh availability snapshot, and persists the result. Each call
// is read-modify-write on the user's own key; concurrent requests from the
// same user are rare enough that last-write-wins is acceptable here.
type Service struct {
	Store        *Store
	Availability SnapshotSource
	Lines        LineSource
	MaxDays      int
	Log          zerolog.Logger
}

// View is the wire representation of a cart returned by every endpoint.
type View struct {
	Cart             Cart              `json:"cart"`
	Editing          bool              `json:"editing"`
	Edit             *EditState        `json:"edit,omitempty"`
	TotalItems       int               `json:"total_items"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

func buildView(state State) View {
	v := View{
		Cart:       state.Committed,
		Editing:    state.Edit != nil,
		Edit:       state.Edit,
		TotalItems: state.Committed.TotalItems(),
	}
	if state.Edit != nil && len(state.Edit.Errors) > 0 {
		v.ValidationErrors = make(map[string]string, len(state.Edit.Errors))
		for id, msg := range state.Edit.Errors {
			v.ValidationErrors[id.String()] = msg
		}
	}
	return v
}

// Get returns the current cart without mutating it.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	state, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return buildView(state), nil
}

// AddItem resolves the item's display fields and adds qty of it to the
// committed cart over the given range.
func (s *Service) AddItem(ctx context.Context, userID string, itemID uuid.UUID, qty int, r daterange.Range) (View, error) {
	line, err := s.Lines.Line(ctx, itemID)
	if err != nil {
		return View{}, err
	}
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.AddItem(line, qty, r)
	})
}

// Increase raises a line's quantity by delta.
func (s *Service) Increase(ctx context.Context, userID string, itemID uuid.UUID, delta int) (View, error) {
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.Increase(itemID, delta)
	})
}

// Decrease lowers a line's quantity by delta.
func (s *Service) Decrease(ctx context.Context, userID string, itemID uuid.UUID, delta int) (View, error) {
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.Decrease(itemID, delta)
	})
}

// Remove drops a line from the active cart.
func (s *Service) Remove(ctx context.Context, userID string, itemID uuid.UUID) (View, error) {
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.Remove(itemID)
	})
}

// ChangeDates applies a candidate date range to the active cart.
func (s *Service) ChangeDates(ctx context.Context, userID string, r daterange.Range) (View, error) {
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.ChangeDates(r)
	})
}

// StartEdit opens a copy-on-write edit session.
func (s *Service) StartEdit(ctx context.Context, userID string) (View, error) {
	return s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.StartEdit()
	})
}

// ConfirmEdit promotes the edit session into the committed cart.
func (s *Service) ConfirmEdit(ctx context.Context, userID string) (View, error) {
	view, err := s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.ConfirmEdit()
	})
	if err == nil {
		countEdit("confirm")
	}
	return view, err
}

// CancelEdit discards the edit session.
func (s *Service) CancelEdit(ctx context.Context, userID string) (View, error) {
	view, err := s.mutate(ctx, userID, func(eng *Engine) error {
		return eng.CancelEdit()
	})
	if err == nil {
		countEdit("cancel")
	}
	return view, err
}

// Empty clears the cart and its persisted state.
func (s *Service) Empty(ctx context.Context, userID string) error {
	return s.Store.Delete(ctx, userID)
}

// mutate is the shared read-modify-write cycle: load state, assemble an
// engine over a fresh availability snapshot, run the operation, persist on
// success.
func (s *Service) mutate(ctx context.Context, userID string, op func(*Engine) error) (View, error) {
	state, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	snap, err := s.Availability.Load(ctx)
	if err != nil {
		return View{}, fmt.Errorf("cart: load availability: %w", err)
	}
	eng := NewEngine(state, availability.Checker{Snapshot: snap}, s.MaxDays)
	if err := op(eng); err != nil {
		return buildView(eng.State()), err
	}
	next := eng.State()
	if err := s.Store.Save(ctx, userID, next); err != nil {
		return View{}, err
	}
	return buildView(next), nil
}

func countEdit(exit string) {
	if obs.CartEditsTotal != nil {
		obs.CartEditsTotal.WithLabelValues(exit).Inc()
	}
}
