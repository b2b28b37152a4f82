// Package middleware holds the http.Handler wrappers shared by all routes.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/juwel66/eventreg/internal/ctxlog"
	"github.com/juwel66/eventreg/internal/http/session"
	"github.com/juwel66/eventreg/internal/metrics"
	"github.com/juwel66/eventreg/internal/utils/response"
)

const requestIDHeader = "X-Request-ID"

// Chain applies mws so that the first one is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID tags the request with an id (the caller's, if it sent one) and
// puts a logger carrying that id into the context.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := ctxlog.WithLogger(r.Context(), base.With(slog.String("request_id", id)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusWriter captures the written status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.wroteHeader {
		return
	}
	sw.status = code
	sw.wroteHeader = true
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Logging logs each request and records its latency. It must wrap the mux
// directly: the route pattern is only known once the mux has matched it.
func Logging(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(sw.status), elapsed)

			ctxlog.FromContext(r.Context()).Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", sw.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}

// Recovery turns a panic into a 500 instead of a dropped connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				ctxlog.FromContext(r.Context()).Error("panic recovered",
					slog.Any("error", err),
					slog.String("trace", string(debug.Stack())),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin sends non-admins to the login page.
func RequireAdmin(sm *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.PrincipalFrom(r.Context()).IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			if err := sm.Flash(w, r, session.LevelWarning, "Please log in as admin."); err != nil {
				ctxlog.FromContext(r.Context()).Warn("flash failed", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		})
	}
}

// RequireAdminJSON answers non-admins with a 401 JSON error.
func RequireAdminJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.PrincipalFrom(r.Context()).IsAdmin {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(response.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
