// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, services, and storage can all import types without depending
// on each other.
package types

import "time"

// DateLayout is the only wire format for event dates. Dates are kept as
// time.Time everywhere else and converted at the storage and HTTP edges.
const DateLayout = "2006-01-02"

// Event is an admin-defined activity with a date and a registration
// capacity. Registered is the materialized seat counter maintained by the
// registration transaction.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Capacity    int       `json:"capacity"`
	Registered  int       `json:"registered"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateString renders the event date in DateLayout.
func (e Event) DateString() string {
	return e.Date.Format(DateLayout)
}

// SeatsLeft never goes negative.
func (e Event) SeatsLeft() int {
	if e.Registered >= e.Capacity {
		return 0
	}
	return e.Capacity - e.Registered
}

// Registration is a student's claim on one seat of one Event.
type Registration struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}

// EventCount is one row of the registration report.
type EventCount struct {
	ID       int64
	Title    string
	Date     time.Time
	Count    int
	Capacity int
}

func (c EventCount) DateString() string {
	return c.Date.Format(DateLayout)
}

// Stats are the dashboard totals.
type Stats struct {
	Events        int
	Registrations int
}

// EventFilter narrows the event catalog. Zero values mean "no constraint".
type EventFilter struct {
	Query string
	Start time.Time
	End   time.Time
}

// ─────────────────────────────────────────────────────────────────────────────
// Form models
//
// These are the values submitted by the HTML forms, after trimming.
// validate:"..." tags are checked by go-playground/validator before
// anything touches the database.
// ─────────────────────────────────────────────────────────────────────────────

// EventForm is the admin "add event" form.
type EventForm struct {
	Title       string `form:"title"    validate:"required"`
	Date        string `form:"date"     validate:"required,datetime=2006-01-02"`
	Description string `form:"desc"     validate:"required"`
	Capacity    int    `form:"capacity" validate:"min=1"`
}

// RegistrationForm is the student registration form.
type RegistrationForm struct {
	StudentID string `form:"sid"    validate:"required"`
	Name      string `form:"name"   validate:"required"`
	Mobile    string `form:"mobile" validate:"required"`
}

// CatalogQuery is the raw /events query string.
type CatalogQuery struct {
	Query string `form:"q"`
	Start string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `form:"end"   validate:"omitempty,datetime=2006-01-02"`
}
