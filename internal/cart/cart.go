// Package cart implements the booking cart and its date-range
// reconciliation engine. A cart is a list of item lines sharing one date
// range; edits to the range run through a copy-on-write session that is
// validated against reservation state before it may replace the committed
// cart.
package cart

import (
	"github.com/google/uuid"

	"github.com/illusia-ry-organization/illusia-ry/internal/daterange"
)

// Line is a cart entry for one item. A line with zero quantity is treated
// as absent from the committed cart and dropped on commit.
type Line struct {
	ItemID    uuid.UUID `json:"item_id"`
	ItemName  string    `json:"item_name"`
	ImagePath []string  `json:"image_path,omitempty"`
	Location  string    `json:"location,omitempty"`
	Quantity  int       `json:"quantity"`
}

// Cart is the committed set of lines plus the single date range they share.
type Cart struct {
	Lines []Line          `json:"lines"`
	Range daterange.Range `json:"date_range"`
}

// TotalItems sums the quantities across all lines.
func (c Cart) TotalItems() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c Cart) find(itemID uuid.UUID) int {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// EditState is the transient working copy alive between StartEdit and
// ConfirmEdit/CancelEdit.
type EditState struct {
	Local     []Line               `json:"local"`
	Candidate daterange.Range      `json:"candidate"`
	Errors    map[uuid.UUID]string `json:"errors,omitempty"`
}

// State is the full serializable engine state. A nil Edit means the cart is
// in viewing mode and the committed cart is the single source of truth.
type State struct {
	Committed Cart       `json:"committed"`
	Edit      *EditState `json:"edit,omitempty"`
}

func copyLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	for i, line := range lines {
		out[i] = line
		if line.ImagePath != nil {
			out[i].ImagePath = append([]string(nil), line.ImagePath...)
		}
	}
	return out
}
