// Package events implements the application's use cases on top of
// storage.Storage: the event catalog, admin event creation, reporting, and
// the registration flow that guards event capacity.
//
// Handlers call the Service; they never talk to storage directly.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/juwel66/eventreg/internal/ctxlog"
	"github.com/juwel66/eventreg/internal/metrics"
	"github.com/juwel66/eventreg/internal/storage"
	"github.com/juwel66/eventreg/internal/types"
)

// LatestLimit is how many events the home page shows.
const LatestLimit = 6

type Service struct {
	store    storage.Storage
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// New wires a Service. m may be nil.
func New(store storage.Storage, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		validate: newValidator(),
		metrics:  m,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Register claims a seat of eventID for the student in form.
//
// Errors, checked in this order, leave the database untouched:
//
//	storage.ErrNotFound               unknown event
//	ErrInvalidInput                   empty student id, name or mobile
//	storage.ErrDuplicateRegistration  the student already holds a seat
//	storage.ErrCapacityExceeded       every seat is taken
//
// The duplicate and capacity checks and the insert run in one storage
// transaction; nothing about the event is cached between calls.
// ─────────────────────────────────────────────────────────────────────────────
func (s *Service) Register(ctx context.Context, eventID int64, form types.RegistrationForm) (int64, error) {
	log := ctxlog.FromContext(ctx).With(slog.Int64("event_id", eventID))

	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		s.metrics.Registration(outcome(err))
		return 0, err
	}

	form = types.RegistrationForm{
		StudentID: strings.TrimSpace(form.StudentID),
		Name:      strings.TrimSpace(form.Name),
		Mobile:    strings.TrimSpace(form.Mobile),
	}
	if err := s.validate.Struct(form); err != nil {
		s.metrics.Registration(metrics.OutcomeInvalid)
		return 0, toValidationError(err)
	}

	id, err := s.store.Register(ctx, types.Registration{
		EventID:   eventID,
		StudentID: form.StudentID,
		Name:      form.Name,
		Mobile:    form.Mobile,
	})
	s.metrics.Registration(outcome(err))
	if err != nil {
		log.Info("registration refused",
			slog.String("student_id", form.StudentID),
			slog.String("reason", err.Error()))
		return 0, err
	}

	log.Info("registration accepted",
		slog.Int64("registration_id", id),
		slog.String("student_id", form.StudentID))
	return id, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, storage.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, storage.ErrCapacityExceeded):
		return metrics.OutcomeFull
	case errors.Is(err, storage.ErrDuplicateRegistration):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeError
	}
}

// ParseFilter turns the raw /events query string into a filter. Empty
// parameters impose no constraint; malformed dates are ErrInvalidInput.
func (s *Service) ParseFilter(q types.CatalogQuery) (types.EventFilter, error) {
	q.Query = strings.TrimSpace(q.Query)
	q.Start = strings.TrimSpace(q.Start)
	q.End = strings.TrimSpace(q.End)

	if err := s.validate.Struct(q); err != nil {
		return types.EventFilter{}, toValidationError(err)
	}

	f := types.EventFilter{Query: q.Query}
	if q.Start != "" {
		f.Start, _ = time.Parse(types.DateLayout, q.Start)
	}
	if q.End != "" {
		f.End, _ = time.Parse(types.DateLayout, q.End)
	}
	return f, nil
}

// ListEvents returns the events matching f: a case-insensitive substring
// of title or description, and an inclusive date range where either bound
// may be zero. Results are ordered by date ascending.
func (s *Service) ListEvents(ctx context.Context, f types.EventFilter) ([]types.Event, error) {
	return s.store.ListEvents(ctx, f)
}

// LatestEvents returns the most recently created events for the home page.
func (s *Service) LatestEvents(ctx context.Context) ([]types.Event, error) {
	return s.store.LatestEvents(ctx, LatestLimit)
}

// Event returns one event or storage.ErrNotFound.
func (s *Service) Event(ctx context.Context, id int64) (types.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// CreateEvent validates the admin form and stores a new event.
func (s *Service) CreateEvent(ctx context.Context, form types.EventForm) (types.Event, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Date = strings.TrimSpace(form.Date)
	form.Description = strings.TrimSpace(form.Description)

	if err := s.validate.Struct(form); err != nil {
		return types.Event{}, toValidationError(err)
	}

	date, err := time.Parse(types.DateLayout, form.Date)
	if err != nil {
		return types.Event{}, invalid("date", "field date must be a date (YYYY-MM-DD)")
	}

	e, err := s.store.CreateEvent(ctx, types.Event{
		Title:       form.Title,
		Description: form.Description,
		Date:        date,
		Capacity:    form.Capacity,
	})
	if err != nil {
		return types.Event{}, fmt.Errorf("create event: %w", err)
	}

	s.metrics.EventCreated()
	ctxlog.FromContext(ctx).Info("event created",
		slog.Int64("event_id", e.ID),
		slog.String("title", e.Title),
		slog.Int("capacity", e.Capacity))
	return e, nil
}

// RegistrationCounts returns, for every event, how many registrations it
// holds against its capacity.
func (s *Service) RegistrationCounts(ctx context.Context) ([]types.EventCount, error) {
	return s.store.RegistrationCounts(ctx)
}

// Stats returns the dashboard totals.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	return s.store.Stats(ctx)
}

// Registrants returns the event and its registrations.
func (s *Service) Registrants(ctx context.Context, eventID int64) (types.Event, []types.Registration, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return types.Event{}, nil, err
	}
	regs, err := s.store.Registrations(ctx, eventID)
	if err != nil {
		return types.Event{}, nil, err
	}
	return e, regs, nil
}
