// Package daterange provides the calendar date range shared by a cart and
// its booking. Dates are day-granular and inclusive on both ends.
package daterange

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// MaxBookingDays caps the span of a single booking range.
const MaxBookingDays = 14

var (
	// ErrInvalid indicates a malformed or inverted range.
	ErrInvalid = errors.New("daterange: invalid range")
	// ErrTooLong indicates the range exceeds MaxBookingDays.
	ErrTooLong = fmt.Errorf("daterange: range exceeds %d days", MaxBookingDays)
)

// Range is an inclusive calendar date range. Both endpoints are stored as
// UTC midnight.
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range from two calendar dates, normalising to UTC midnight.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: truncate(start), End: truncate(end)}
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return Range{}, ErrInvalid
	}
	return r, nil
}

// Parse builds a Range from two Layout-formatted strings.
func Parse(start, end string) (Range, error) {
	s, err := time.ParseInLocation(Layout, start, time.UTC)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start %q", ErrInvalid, start)
	}
	e, err := time.ParseInLocation(Layout, end, time.UTC)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end %q", ErrInvalid, end)
	}
	return New(s, e)
}

// IsZero reports whether the range has not been set.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Days returns the span between start and end in whole days. A single-day
// range returns 0, matching the difference the booking cap is applied to.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start) / (24 * time.Hour))
}

// CheckSpan returns ErrTooLong when the range exceeds the booking cap.
func (r Range) CheckSpan() error {
	if r.Days() > MaxBookingDays {
		return ErrTooLong
	}
	return nil
}

// Overlaps reports whether two inclusive date ranges share at least one day.
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// Contains reports whether the given date falls inside the range.
func (r Range) Contains(day time.Time) bool {
	d := truncate(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// StartString returns the start date in wire format.
func (r Range) StartString() string { return r.Start.Format(Layout) }

// EndString returns the end date in wire format.
func (r Range) EndString() string { return r.End.Format(Layout) }

func (r Range) String() string {
	return r.StartString() + " - " + r.EndString()
}

type rangeJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MarshalJSON encodes the range as {"start_date","end_date"} calendar dates.
func (r Range) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return json.Marshal(rangeJSON{})
	}
	return json.Marshal(rangeJSON{StartDate: r.StartString(), EndDate: r.EndString()})
}

// UnmarshalJSON decodes the wire representation, accepting the zero range.
func (r *Range) UnmarshalJSON(data []byte) error {
	var raw rangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.StartDate == "" && raw.EndDate == "" {
		*r = Range{}
		return nil
	}
	parsed, err := Parse(raw.StartDate, raw.EndDate)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
