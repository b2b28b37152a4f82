// Package router assembles the route table and the middleware stack.
package router

import (
	"log/slog"
	"net/http"

	"github.com/juwel66/eventreg/internal/events"
	"github.com/juwel66/eventreg/internal/http/handlers/admin"
	"github.com/juwel66/eventreg/internal/http/handlers/event"
	"github.com/juwel66/eventreg/internal/http/middleware"
	"github.com/juwel66/eventreg/internal/http/render"
	"github.com/juwel66/eventreg/internal/http/session"
	"github.com/juwel66/eventreg/internal/metrics"
)

type Deps struct {
	Logger   *slog.Logger
	Service  *events.Service
	Sessions *session.Manager
	Renderer *render.Renderer
	Metrics  *metrics.Metrics
}

// New returns the application's root handler.
//
// Route table:
//
//	GET      /                            latest events
//	GET/POST /admin/login                 admin session login
//	GET      /admin/logout                clear admin session
//	GET      /admin/dashboard             stats + per-event counts       admin
//	GET      /api/metrics/registrations   JSON per-event counts          admin (401)
//	GET      /events?q=&start=&end=       filtered event list
//	GET      /student                     all events, date ascending
//	GET/POST /add_event                   create event                   admin
//	GET      /register                    redirect to /student
//	GET/POST /register/{id}               register for event
//	GET      /report                      registration report            admin
//	GET      /registrations/{id}          registrants of one event
//	GET      /metrics                     Prometheus exposition
func New(d Deps) http.Handler {
	svc, rd, sm := d.Service, d.Renderer, d.Sessions
	adminOnly := middleware.RequireAdmin(sm)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", event.Home(svc, rd))
	mux.HandleFunc("GET /events", event.List(svc, rd, sm))
	mux.HandleFunc("GET /student", event.Student(svc, rd))
	mux.HandleFunc("GET /register", event.RegisterIndex())
	mux.HandleFunc("GET /register/{id}", event.RegisterForm(svc, rd))
	mux.HandleFunc("POST /register/{id}", event.Register(svc, rd, sm))
	mux.HandleFunc("GET /registrations/{id}", event.Registrants(svc, rd))

	mux.HandleFunc("GET /admin/login", admin.LoginForm(rd))
	mux.HandleFunc("POST /admin/login", admin.Login(rd, sm))
	mux.HandleFunc("GET /admin/logout", admin.Logout(rd, sm))
	mux.Handle("GET /admin/dashboard", adminOnly(admin.Dashboard(svc, rd)))
	mux.Handle("GET /add_event", adminOnly(admin.AddEventForm(rd)))
	mux.Handle("POST /add_event", adminOnly(admin.AddEvent(svc, rd, sm)))
	mux.Handle("GET /report", adminOnly(admin.Report(svc, rd)))
	mux.Handle("GET /api/metrics/registrations", middleware.RequireAdminJSON(admin.Metrics(svc)))

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	mux.HandleFunc("/", rd.NotFound)

	return middleware.Chain(mux,
		middleware.RequestID(d.Logger),
		middleware.Recovery,
		sm.Load,
		middleware.Logging(d.Metrics),
	)
}
