// Package bookings turns a validated cart into a persisted booking with
// item reservations, and runs the approval workflow around it.
package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ValidDecision reports whether status is an admin decision target.
func ValidDecision(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Item is one reserved line of a booking.
type Item struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
	Quantity int       `json:"quantity"`
	IsActive bool      `json:"is_active"`
}

// Booking is a dated reservation request for a set of items.
type Booking struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Status    string          `json:"status"`
	Range     daterange.Range `json:"date_range"`
	Items     []Item          `json:"items"`
	DecidedBy *uuid.UUID      `json:"decided_by,omitempty"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Open reports whether the booking still holds (or may come to hold)
// capacity. Only open bookings can be cancelled.
func (b Booking) Open() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}

// ListFilter narrows admin booking listings.
type ListFilter struct {
	Status  string
	UserID  uuid.UUID
	Page    int
	PerPage int
}
