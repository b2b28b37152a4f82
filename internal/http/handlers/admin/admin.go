// Package admin contains the administrator's HTTP handlers: login and
// logout, event creation, and the registration reports.
//
// Only Login/Logout are reachable anonymously; the router wraps the rest
// in middleware.RequireAdmin or middleware.RequireAdminJSON.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/juwel66/eventreg/internal/ctxlog"
	"github.com/juwel66/eventreg/internal/events"
	"github.com/juwel66/eventreg/internal/http/render"
	"github.com/juwel66/eventreg/internal/http/session"
	"github.com/juwel66/eventreg/internal/types"
	"github.com/juwel66/eventreg/internal/utils/response"
)

func flash(sm *session.Manager, w http.ResponseWriter, r *http.Request, level, msg string) {
	if err := sm.Flash(w, r, level, msg); err != nil {
		ctxlog.FromContext(r.Context()).Warn("flash failed", slog.String("error", err.Error()))
	}
}

// LoginForm handles GET /admin/login
func LoginForm(rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Page(w, r, http.StatusOK, "admin_login", "Admin login", nil)
	}
}

// Login handles POST /admin/login
// Form fields: username, password. A failed attempt does not say which
// field was wrong.
func Login(rd *render.Renderer, sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := ctxlog.FromContext(r.Context())

		if err := r.ParseForm(); err != nil {
			http.Error(w, "could not parse form", http.StatusBadRequest)
			return
		}

		ok, err := sm.Login(w, r,
			strings.TrimSpace(r.PostFormValue("username")),
			strings.TrimSpace(r.PostFormValue("password")),
			session.Flash{Level: session.LevelSuccess, Message: "Logged in as admin"},
		)
		if err != nil {
			log.Error("error saving admin session", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}

		if !ok {
			log.Warn("admin login failed")
			flash(sm, w, r, session.LevelDanger, "Invalid credentials")
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}

		log.Info("admin logged in")
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
	}
}

// Logout handles GET /admin/logout
func Logout(rd *render.Renderer, sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notice := session.Flash{Level: session.LevelInfo, Message: "You have been logged out."}
		if err := sm.Logout(w, r, notice); err != nil {
			ctxlog.FromContext(r.Context()).Error("error clearing admin session", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Dashboard handles GET /admin/dashboard
// Totals plus registrations per event.
func Dashboard(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("error getting stats", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}

		series, err := svc.RegistrationCounts(r.Context())
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("error counting registrations", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}

		rd.Page(w, r, http.StatusOK, "admin_dashboard", "Dashboard", map[string]any{
			"Stats":  stats,
			"Series": series,
		})
	}
}

// Report handles GET /report
func Report(svc *events.Service, rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.RegistrationCounts(r.Context())
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("error counting registrations", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}
		rd.Page(w, r, http.StatusOK, "report", "Report", map[string]any{"Report": rows})
	}
}

// registrationMetric is one element of the /api/metrics/registrations array.
type registrationMetric struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Capacity int    `json:"capacity"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics handles GET /api/metrics/registrations
//
// Success response (200 OK), ordered by event id:
//
//	[ { "title": "Hackathon", "date": "2025-03-14", "count": 12, "capacity": 40 } ]
//
// Returns [] (not null) when there are no events.
// ─────────────────────────────────────────────────────────────────────────────
func Metrics(svc *events.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.RegistrationCounts(r.Context())
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("error counting registrations", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		out := make([]registrationMetric, 0, len(rows))
		for _, row := range rows {
			out = append(out, registrationMetric{
				Title:    row.Title,
				Date:     row.DateString(),
				Count:    row.Count,
				Capacity: row.Capacity,
			})
		}
		response.WriteJSON(w, http.StatusOK, out)
	}
}

// AddEventForm handles GET /add_event
func AddEventForm(rd *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Page(w, r, http.StatusOK, "add_event", "Add event", nil)
	}
}

// AddEvent handles POST /add_event
// Form fields: title, date (YYYY-MM-DD), desc, capacity (>= 1).
func AddEvent(svc *events.Service, rd *render.Renderer, sm *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "could not parse form", http.StatusBadRequest)
			return
		}

		// A non-numeric capacity is left at 0 and rejected by validation.
		capacity, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("capacity")))

		_, err := svc.CreateEvent(r.Context(), types.EventForm{
			Title:       r.PostFormValue("title"),
			Date:        r.PostFormValue("date"),
			Description: r.PostFormValue("desc"),
			Capacity:    capacity,
		})
		if errors.Is(err, events.ErrInvalidInput) {
			ctxlog.FromContext(r.Context()).Info("event rejected", slog.String("reason", err.Error()))
			flash(sm, w, r, session.LevelWarning, "Please fill all fields correctly.")
			http.Redirect(w, r, "/add_event", http.StatusSeeOther)
			return
		}
		if err != nil {
			ctxlog.FromContext(r.Context()).Error("error creating event", slog.String("error", err.Error()))
			rd.Error(w, r, http.StatusInternalServerError)
			return
		}

		flash(sm, w, r, session.LevelSuccess, "Event added successfully!")
		http.Redirect(w, r, "/events", http.StatusSeeOther)
	}
}
