// Package availability answers "can this quantity of this item be reserved
// over this date range" against a snapshot of confirmed reservations.
package availability

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
)

// Severity classifies a check result.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Meta carries optional result metadata, currently the remaining amount.
type Meta struct {
	Amount int `json:"amount"`
}

// Result is the tri-state outcome of an availability check.
type Result struct {
	Severity       Severity `json:"severity"`
	Message        string   `json:"message,omitempty"`
	TranslationKey string   `json:"translation_key,omitempty"`
	Meta           *Meta    `json:"metadata,omitempty"`
}

// OK reports whether the result allows the requested quantity.
func (r Result) OK() bool { return r.Severity == SeveritySuccess }

// ItemStock describes the bookable stock of a single item.
type ItemStock struct {
	ItemID   uuid.UUID
	Name     string
	Quantity int
	Visible  bool
}

// Reservation is a confirmed allocation consuming capacity.
type Reservation struct {
	ID        uuid.UUID       `json:"id"`
	BookingID uuid.UUID       `json:"booking_id"`
	ItemID    uuid.UUID       `json:"item_id"`
	Range     daterange.Range `json:"range"`
	Quantity  int             `json:"quantity"`
	IsActive  bool            `json:"is_active"`
}

// Snapshot is the in-memory reservation state a Checker evaluates against.
// Callers fetch it once per request so repeated checks see a consistent view.
type Snapshot struct {
	Items        map[uuid.UUID]ItemStock
	Reservations []Reservation
}

// CheckOptions tunes a single availability check.
type CheckOptions struct {
	// ExcludeBooking removes that booking's own reservations from the
	// capacity count, so editing an existing booking does not double-count
	// itself.
	ExcludeBooking uuid.UUID
}

// Checker evaluates availability against a fixed snapshot.
type Checker struct {
	Snapshot Snapshot
}

// Check reports whether proposedQty of the item is obtainable over the
// range. proposedQty is the prospective total, not a delta.
func (c Checker) Check(itemID uuid.UUID, proposedQty int, r daterange.Range, opts CheckOptions) Result {
	res := c.check(itemID, proposedQty, r, opts)
	if obs.AvailabilityChecksTotal != nil {
		obs.AvailabilityChecksTotal.WithLabelValues(string(res.Severity)).Inc()
	}
	return res
}

func (c Checker) check(itemID uuid.UUID, proposedQty int, r daterange.Range, opts CheckOptions) Result {
	stock, ok := c.Snapshot.Items[itemID]
	if !ok || !stock.Visible {
		return Result{
			Severity:       SeverityError,
			Message:        "item is not available for booking",
			TranslationKey: "availability.itemNotFound",
		}
	}
	if proposedQty <= 0 {
		return Result{Severity: SeveritySuccess}
	}

	reserved := 0
	for _, res := range c.Snapshot.Reservations {
		if res.ItemID != itemID || !res.IsActive {
			continue
		}
		if opts.ExcludeBooking != uuid.Nil && res.BookingID == opts.ExcludeBooking {
			continue
		}
		if res.Range.Overlaps(r) {
			reserved += res.Quantity
		}
	}

	available := stock.Quantity - reserved
	if available < 0 {
		available = 0
	}
	switch {
	case proposedQty <= available:
		return Result{Severity: SeveritySuccess}
	case available > 0:
		return Result{
			Severity:       SeverityWarning,
			Message:        fmt.Sprintf("only %d of %s available for the selected dates", available, stock.Name),
			TranslationKey: "availability.onlyAmountAvailable",
			Meta:           &Meta{Amount: available},
		}
	default:
		return Result{
			Severity:       SeverityError,
			Message:        fmt.Sprintf("%s is fully booked for the selected dates", stock.Name),
			TranslationKey: "availability.fullyBooked",
			Meta:           &Meta{Amount: 0},
		}
	}
}
