// Package event contains the public HTTP handlers: browsing events and
// registering for them.
//
// Handlers are factories: they receive their dependencies once, at route
// registration, and return the http.HandlerFunc the router calls on every
// request.
//
//	router.HandleFunc("GET /events", event.List(svc, rd, sm))
//
// Form submissions follow Post/Redirect/Get: the outcome is queued as a
// flash notice and the browser is redirected to a page that shows it.
package event

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/juwel66/eventreg/internal/ctxlog"
	"github.com/juwel66/eventreg/internal/events"
	"github.com/juwel66/eventreg/internal/http/render"
	"github.com/juwel66/eventreg/internal/http/session"
	"github.com/juwel66/eventreg/internal/storage"
	"github.com/juwel66/eventreg/internal/types"
)

// eventID parses the {id} path segment. Anything that is not a positive
// integer cannot name an event.
func eventID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func flash(sm *session.Manager, w http.ResponseWriter, r *http.Request, level, msg string) {
	if err := sm.Flash(w, r, level, msg); err != nil {
		ctxlog.FromContext(r.Context()).Warn("flash failed", slog.String("error", err.Error()))
	}
}

func serverError(rd *render.Renderer, w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctxlog.FromContext(r.Context()).Error(msg, slog.String("error", err.Error()))
	rd.Error(w, r, http.StatusInternalServerError)
}

// Home handles GET /
// Shows the most recently created events.
func Home(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := svc.LatestEvents(r.Context())
		if err != nil {
			serverError(rd, w, r, "error listing latest events", err)
			return
		}
		rd.Page(w, r, http.StatusOK, "home", "Home", map[string]any{"Events": latest})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// List handles GET /events?q=&start=&end=
//
//	q      case-insensitive substring of title or description
//	start  inclusive lower date bound, YYYY-MM-DD
//	end    inclusive upper date bound, YYYY-MM-DD
//
// A malformed date is reported as a notice and the unfiltered list is shown.
// ─────────────────────────────────────────────────────────────────────────────
func List(svc *events.Service, rd *render.Renderer, sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		cq := types.CatalogQuery{
			Query: strings.TrimSpace(query.Get("q")),
			Start: strings.TrimSpace(query.Get("start")),
			End:   strings.TrimSpace(query.Get("end")),
		}

		filter, err := svc.ParseFilter(cq)
		if err != nil {
			flash(sm, w, r, session.LevelWarning, "Dates must be in YYYY-MM-DD format.")
			http.Redirect(w, r, "/events", http.StatusSeeOther)
			return
		}

		list, err := svc.ListEvents(r.Context(), filter)
		if err != nil {
			serverError(rd, w, r, "error listing events", err)
			return
		}

		rd.Page(w, r, http.StatusOK, "events", "Events", map[string]any{
			"Events": list,
			"Q":      cq.Query,
			"Start":  cq.Start,
			"End":    cq.End,
		})
	}
}

// Student handles GET /student
// Every event, soonest first.
func Student(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListEvents(r.Context(), types.EventFilter{})
		if err != nil {
			serverError(rd, w, r, "error listing events", err)
			return
		}
		rd.Page(w, r, http.StatusOK, "student", "Student dashboard", map[string]any{"Events": list})
	}
}

// RegisterIndex handles GET /register, which has no event to show.
func RegisterIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/student", http.StatusFound)
	}
}

// RegisterForm handles GET /register/{id}
func RegisterForm(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := eventID(r)
		if !ok {
			rd.NotFound(w, r)
			return
		}

		e, err := svc.Event(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			rd.NotFound(w, r)
			return
		}
		if err != nil {
			serverError(rd, w, r, "error getting event", err)
			return
		}

		rd.Page(w, r, http.StatusOK, "register", "Register", map[string]any{
			"Event": e,
			"Count": e.Registered,
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Register handles POST /register/{id}
//
// Form fields: name, sid, mobile.
//
//	success, full, duplicate  → flash, 303 to /events
//	missing fields            → flash, 303 back to the form
//	unknown event             → 404
// ─────────────────────────────────────────────────────────────────────────────
func Register(svc *events.Service, rd *render.Renderer, sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := eventID(r)
		if !ok {
			rd.NotFound(w, r)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "could not parse form", http.StatusBadRequest)
			return
		}

		_, err := svc.Register(r.Context(), id, types.RegistrationForm{
			StudentID: r.PostFormValue("sid"),
			Name:      r.PostFormValue("name"),
			Mobile:    r.PostFormValue("mobile"),
		})

		switch {
		case err == nil:
			flash(sm, w, r, session.LevelSuccess, "Registered successfully!")
		case errors.Is(err, storage.ErrNotFound):
			rd.NotFound(w, r)
			return
		case errors.Is(err, events.ErrInvalidInput):
			flash(sm, w, r, session.LevelWarning, "Please enter your name, student ID and mobile number.")
			http.Redirect(w, r, "/register/"+url.PathEscape(r.PathValue("id")), http.StatusSeeOther)
			return
		case errors.Is(err, storage.ErrCapacityExceeded):
			flash(sm, w, r, session.LevelWarning, "Event registration full!")
		case errors.Is(err, storage.ErrDuplicateRegistration):
			flash(sm, w, r, session.LevelWarning, "Already registered!")
		default:
			serverError(rd, w, r, "error registering", err)
			return
		}

		http.Redirect(w, r, "/events", http.StatusSeeOther)
	}
}

// Registrants handles GET /registrations/{id}
func Registrants(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := eventID(r)
		if !ok {
			rd.NotFound(w, r)
			return
		}

		e, regs, err := svc.Registrants(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			rd.NotFound(w, r)
			return
		}
		if err != nil {
			serverError(rd, w, r, "error listing registrations", err)
			return
		}

		rd.Page(w, r, http.StatusOK, "registrations", "Registrations", map[string]any{
			"Event":         e,
			"Registrations": regs,
		})
	}
}
