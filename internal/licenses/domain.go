package licenses

import (
	"errors"
	"time"
)

// Collection is the document collection licenses live in.
const Collection = "licenses"

// ErrNotFound indicates the license does not exist.
var ErrNotFound = errors.New("licenses: not found")

// License tracks seats of one product.
type License struct {
	ID        string     `json:"id"`
	Product   string     `json:"product"`
	Seats     int        `json:"seats"`
	Assignees []string   `json:"assignees"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Available returns the number of unassigned seats.
func (l License) Available() int {
	return l.Seats - len(l.Assignees)
}

// Expired reports whether the license lapsed before now.
func (l License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Input is the create/update payload.
type Input struct {
	Product   string     `json:"product" validate:"required,max=120"`
	Seats     int        `json:"seats" validate:"min=0"`
	Assignees []string   `json:"assignees" validate:"dive,required,max=254"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Notes     string     `json:"notes" validate:"max=2000"`
}
