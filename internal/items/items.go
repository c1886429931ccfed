// Package items manages the rentable catalogue: categories and the items
// users can place in a cart. Quantity here is total owned stock; what is
// bookable on given dates is the availability package's concern.
package items

import (
	"time"

	"github.com/google/uuid"
)

// Category groups items for browsing.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item is a rentable catalogue entry.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImagePath   []string   `json:"image_path"`
	Location    string     `json:"location,omitempty"`
	Quantity    int        `json:"quantity"`
	Visible     bool       `json:"visible"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ItemInput is the payload for creating or updating an item.
type ItemInput struct {
	CategoryID  *uuid.UUID `json:"category_id"`
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	ImagePath   []string   `json:"image_path" validate:"max=10,dive,max=500"`
	Location    string     `json:"location" validate:"max=200"`
	Quantity    int        `json:"quantity" validate:"min=0"`
	Visible     *bool      `json:"visible"`
}

// CategoryInput is the payload for creating or updating a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=1000"`
	ImagePath   string `json:"image_path" validate:"max=500"`
}

// ListFilter narrows item listings.
type ListFilter struct {
	CategoryID    *uuid.UUID
	Search        string
	IncludeHidden bool
	Page          int
	PerPage       int
}
