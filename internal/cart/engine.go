package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

var (
	// ErrNoDateRange is returned when a quantity increase is attempted
	// before any date range has been chosen.
	ErrNoDateRange = errors.New("cart: no active date range")
	// ErrLineNotFound is returned when the referenced item is not in the
	// active cart.
	ErrLineNotFound = errors.New("cart: item not in cart")
	// ErrAlreadyEditing is returned when StartEdit is called twice.
	ErrAlreadyEditing = errors.New("cart: edit session already open")
	// ErrNotEditing is returned by edit-session operations in viewing mode.
	ErrNotEditing = errors.New("cart: no edit session open")
	// ErrEditing is returned by viewing-only operations during an edit.
	ErrEditing = errors.New("cart: edit session open")
	// ErrOutstandingErrors refuses a confirm while validation errors remain.
	ErrOutstandingErrors = errors.New("cart: resolve validation errors before confirming")
	// ErrInvalidQuantity rejects non-positive deltas.
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
)

// UnavailableError carries the checker's verdict verbatim when a mutation
// is rejected for lack of availability.
type UnavailableError struct {
	Result availability.Result
}

func (e *UnavailableError) Error() string {
	if e == nil {
		return ""
	}
	return e.Result.Message
}

// Checker is the availability collaborator the engine consults. The caller
// supplies the prospective total quantity, never a delta.
type Checker interface {
	Check(itemID uuid.UUID, proposedQty int, r daterange.Range, opts availability.CheckOptions) availability.Result
}

// Engine mediates between the committed cart and a transient local editing
// copy, enforcing the date-span cap and per-item availability before any
// commit. All operations are synchronous and mutate only the engine's own
// state; persistence is the caller's concern via State().
type Engine struct {
	state   State
	checker Checker
	maxDays int

	// excludeBooking is forwarded to every availability check so that a
	// cart re-editing an existing booking does not count itself as
	// competing demand.
	excludeBooking uuid.UUID
}

// NewEngine builds an engine over previously persisted state. maxDays <= 0
// falls back to the package default.
func NewEngine(state State, checker Checker, maxDays int) *Engine {
	if maxDays <= 0 {
		maxDays = daterange.MaxBookingDays
	}
	return &Engine{state: state, checker: checker, maxDays: maxDays}
}

// ExcludeBooking makes subsequent availability checks ignore reservations
// held by the given booking.
func (e *Engine) ExcludeBooking(id uuid.UUID) { e.excludeBooking = id }

// State returns a deep copy of the engine state for persistence.
func (e *Engine) State() State {
	out := State{Committed: Cart{Lines: copyLines(e.state.Committed.Lines), Range: e.state.Committed.Range}}
	if e.state.Edit != nil {
		edit := &EditState{
			Local:     copyLines(e.state.Edit.Local),
			Candidate: e.state.Edit.Candidate,
		}
		if e.state.Edit.Errors != nil {
			edit.Errors = make(map[uuid.UUID]string, len(e.state.Edit.Errors))
			for k, v := range e.state.Edit.Errors {
				edit.Errors[k] = v
			}
		}
		out.Edit = edit
	}
	return out
}

// Committed returns the committed cart.
func (e *Engine) Committed() Cart { return e.state.Committed }

// Editing reports whether an edit session is open.
func (e *Engine) Editing() bool { return e.state.Edit != nil }

// ActiveLines returns the lines mutations currently apply to: the local
// copy during an edit, the committed cart otherwise.
func (e *Engine) ActiveLines() []Line {
	if e.state.Edit != nil {
		return e.state.Edit.Local
	}
	return e.state.Committed.Lines
}

// ActiveRange returns the candidate range during an edit, the committed
// range otherwise.
func (e *Engine) ActiveRange() daterange.Range {
	if e.state.Edit != nil {
		return e.state.Edit.Candidate
	}
	return e.state.Committed.Range
}

// ValidationErrors returns the current per-item error map, nil in viewing
// mode.
func (e *Engine) ValidationErrors() map[uuid.UUID]string {
	if e.state.Edit == nil {
		return nil
	}
	return e.state.Edit.Errors
}

// StartEdit opens an edit session by snapshotting the committed cart.
func (e *Engine) StartEdit() error {
	if e.state.Edit != nil {
		return ErrAlreadyEditing
	}
	e.state.Edit = &EditState{
		Local:     copyLines(e.state.Committed.Lines),
		Candidate: e.state.Committed.Range,
		Errors:    map[uuid.UUID]string{},
	}
	return nil
}

// CancelEdit discards the local copy and candidate range; the committed
// cart is untouched.
func (e *Engine) CancelEdit() error {
	if e.state.Edit == nil {
		return ErrNotEditing
	}
	e.state.Edit = nil
	return nil
}

// ConfirmEdit promotes the local copy to the committed cart. It is refused
// while validation errors are outstanding; lines with zero quantity are
// dropped, and the committed cart and range are replaced together.
func (e *Engine) ConfirmEdit() error {
	if e.state.Edit == nil {
		return ErrNotEditing
	}
	if len(e.state.Edit.Errors) > 0 {
		return ErrOutstandingErrors
	}
	kept := make([]Line, 0, len(e.state.Edit.Local))
	for _, line := range e.state.Edit.Local {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	e.state.Committed = Cart{Lines: kept, Range: e.state.Edit.Candidate}
	e.state.Edit = nil
	return nil
}

// ChangeDates applies a candidate date range to the active cart. Ranges
// longer than the booking cap are rejected before any availability check.
// During an edit the candidate is always recorded and the error map rebuilt
// from scratch; in viewing mode the committed range only changes when every
// line passes.
func (e *Engine) ChangeDates(candidate daterange.Range) error {
	if candidate.IsZero() {
		return daterange.ErrInvalid
	}
	if candidate.Days() > e.maxDays {
		return daterange.ErrTooLong
	}

	if e.state.Edit != nil {
		e.state.Edit.Candidate = candidate
		e.revalidate()
		return nil
	}

	errs := e.validate(e.state.Committed.Lines, candidate)
	if len(errs) > 0 {
		return &UnavailableError{Result: firstResult(e.state.Committed.Lines, errs)}
	}
	e.state.Committed.Range = candidate
	return nil
}

// Increase raises a line's quantity by delta after checking that the
// prospective total is available over the active range. The local quantity
// is the base while editing.
func (e *Engine) Increase(itemID uuid.UUID, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	active := e.ActiveRange()
	if active.IsZero() {
		return ErrNoDateRange
	}
	lines := e.ActiveLines()
	idx := Cart{Lines: lines}.find(itemID)
	if idx < 0 {
		return ErrLineNotFound
	}
	prospective := lines[idx].Quantity + delta
	result := e.checker.Check(itemID, prospective, active, availability.CheckOptions{ExcludeBooking: e.excludeBooking})
	if !result.OK() {
		return &UnavailableError{Result: result}
	}
	lines[idx].Quantity = prospective
	return nil
}

// Decrease lowers a line's quantity by delta, clamping at zero. Decreasing
// never needs an availability check; during an edit the full validation is
// re-run afterwards since less demand may clear a failing line.
func (e *Engine) Decrease(itemID uuid.UUID, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	if e.state.Edit != nil {
		idx := Cart{Lines: e.state.Edit.Local}.find(itemID)
		if idx < 0 {
			return ErrLineNotFound
		}
		next := e.state.Edit.Local[idx].Quantity - delta
		if next < 0 {
			next = 0
		}
		e.state.Edit.Local[idx].Quantity = next
		e.revalidate()
		return nil
	}

	idx := e.state.Committed.find(itemID)
	if idx < 0 {
		return ErrLineNotFound
	}
	next := e.state.Committed.Lines[idx].Quantity - delta
	if next <= 0 {
		e.state.Committed.Lines = append(e.state.Committed.Lines[:idx], e.state.Committed.Lines[idx+1:]...)
		return nil
	}
	e.state.Committed.Lines[idx].Quantity = next
	return nil
}

// Remove drops a line entirely; it is Decrease by the line's own quantity.
func (e *Engine) Remove(itemID uuid.UUID) error {
	lines := e.ActiveLines()
	idx := Cart{Lines: lines}.find(itemID)
	if idx < 0 {
		return ErrLineNotFound
	}
	qty := lines[idx].Quantity
	if qty == 0 {
		if e.state.Edit == nil {
			e.state.Committed.Lines = append(e.state.Committed.Lines[:idx], e.state.Committed.Lines[idx+1:]...)
		}
		return nil
	}
	return e.Decrease(itemID, qty)
}

// AddItem puts a new item into the committed cart, availability-gated. The
// supplied range becomes the committed range when the cart is empty;
// afterwards every addition shares the committed range. Not permitted
// during an edit session.
func (e *Engine) AddItem(line Line, qty int, r daterange.Range) error {
	if e.state.Edit != nil {
		return ErrEditing
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	target := e.state.Committed.Range
	if target.IsZero() {
		if r.IsZero() {
			return ErrNoDateRange
		}
		if r.Days() > e.maxDays {
			return daterange.ErrTooLong
		}
		target = r
	}

	existing := 0
	if idx := e.state.Committed.find(line.ItemID); idx >= 0 {
		existing = e.state.Committed.Lines[idx].Quantity
	}
	result := e.checker.Check(line.ItemID, existing+qty, target, availability.CheckOptions{ExcludeBooking: e.excludeBooking})
	if !result.OK() {
		return &UnavailableError{Result: result}
	}

	if idx := e.state.Committed.find(line.ItemID); idx >= 0 {
		e.state.Committed.Lines[idx].Quantity += qty
	} else {
		line.Quantity = qty
		e.state.Committed.Lines = append(e.state.Committed.Lines, line)
	}
	e.state.Committed.Range = target
	return nil
}

// Empty clears the committed cart and any open edit session. The committed
// range is reset alongside the lines.
func (e *Engine) Empty() {
	e.state = State{}
}

// revalidate rebuilds the edit session's error map from scratch so entries
// for removed or reduced lines never go stale.
func (e *Engine) revalidate() {
	edit := e.state.Edit
	edit.Errors = e.validate(edit.Local, edit.Candidate)
}

func (e *Engine) validate(lines []Line, r daterange.Range) map[uuid.UUID]string {
	errs := map[uuid.UUID]string{}
	if r.IsZero() {
		return errs
	}
	for _, line := range lines {
		if line.Quantity == 0 {
			continue
		}
		result := e.checker.Check(line.ItemID, line.Quantity, r, availability.CheckOptions{ExcludeBooking: e.excludeBooking})
		if !result.OK() {
			errs[line.ItemID] = result.Message
		}
	}
	return errs
}

func firstResult(lines []Line, errs map[uuid.UUID]string) availability.Result {
	for _, line := range lines {
		if msg, ok := errs[line.ItemID]; ok {
			return availability.Result{Severity: availability.SeverityError, Message: msg}
		}
	}
	return availability.Result{Severity: availability.SeverityError, Message: fmt.Sprintf("%d items unavailable for the selected dates", len(errs))}
}
