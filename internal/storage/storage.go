// Package storage defines the Storage interface, the contract any
// database backend must satisfy to work with this application, and the
// sentinel errors backends report.
//
// Handlers and services depend only on this interface, so tests can run
// against a throwaway SQLite file and a different backend only needs a
// new implementation.
package storage

import (
	"context"
	"errors"

	"github.com/juwel66/eventreg/internal/types"
)

var (
	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")

	// ErrCapacityExceeded is returned when every seat of the event is taken.
	ErrCapacityExceeded = errors.New("event registration full")

	// ErrDuplicateRegistration is returned when the student already holds
	// a seat for the event.
	ErrDuplicateRegistration = errors.New("already registered for this event")
)

// Storage is the database contract.
type Storage interface {
	// CreateEvent inserts a new event and returns it with its store-assigned
	// ID. IDs are never reused.
	CreateEvent(ctx context.Context, e types.Event) (types.Event, error)

	// GetEvent fetches one event. Returns ErrNotFound if it does not exist.
	GetEvent(ctx context.Context, id int64) (types.Event, error)

	// ListEvents returns the events matching f ordered by date ascending.
	// Returns an empty slice (not nil) when nothing matches.
	ListEvents(ctx context.Context, f types.EventFilter) ([]types.Event, error)

	// LatestEvents returns up to limit events, most recently created first.
	LatestEvents(ctx context.Context, limit int) ([]types.Event, error)

	// Register atomically claims one seat of the event for r.StudentID.
	// It returns ErrNotFound, ErrDuplicateRegistration or
	// ErrCapacityExceeded without writing anything, or the new
	// registration's ID.
	Register(ctx context.Context, r types.Registration) (int64, error)

	// Registrations lists the registrations of one event ordered by ID.
	Registrations(ctx context.Context, eventID int64) ([]types.Registration, error)

	// RegistrationCounts returns one row per event ordered by event ID.
	RegistrationCounts(ctx context.Context) ([]types.EventCount, error)

	// Stats returns the dashboard totals.
	Stats(ctx context.Context) (types.Stats, error)

	Close() error
}
