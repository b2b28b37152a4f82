// main is the entry point of the event registration server.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, optional YAML file, environment)
//  2. Initialise the logger
//  3. Open the SQLite database and apply pending migrations
//  4. Build the service, session gate, templates and routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, close the database
//
// RUNNING THE SERVER:
//
//	ADMIN_USER=me ADMIN_PASS=secret go run ./cmd/eventreg
//
// or with a config file:
//
//	go run ./cmd/eventreg --config=config/local.yaml
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juwel66/eventreg/internal/config"
	"github.com/juwel66/eventreg/internal/events"
	"github.com/juwel66/eventreg/internal/http/render"
	"github.com/juwel66/eventreg/internal/http/router"
	"github.com/juwel66/eventreg/internal/http/session"
	"github.com/juwel66/eventreg/internal/metrics"
	"github.com/juwel66/eventreg/internal/storage/sqlite"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting eventreg",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)
	if cfg.UsesDevDefaults() {
		log.Warn("session secret or admin credentials are development defaults; set SESSION_SECRET, ADMIN_USER and ADMIN_PASS")
	}

	// ── Storage ───────────────────────────────────────────────────────────
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := sqlite.New(initCtx, cfg.StoragePath)
	cancel()
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("storage initialised", slog.String("path", cfg.StoragePath))

	// ── Application ───────────────────────────────────────────────────────
	m := metrics.New()
	svc := events.New(store, m)

	sm := session.NewManager(session.Options{
		Secret:    cfg.Session.Secret,
		MaxAge:    cfg.Session.MaxAge,
		Secure:    cfg.Env == "prod",
		AdminUser: cfg.Admin.User,
		AdminPass: cfg.Admin.Password,
	})

	rd, err := render.New(sm)
	if err != nil {
		log.Error("failed to load templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := router.New(router.Deps{
		Logger:   log,
		Service:  svc,
		Sessions: sm,
		Renderer: rd,
		Metrics:  m,
	})

	// ── HTTP server ───────────────────────────────────────────────────────
	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
	}

	// The database goes last, after in-flight requests are done with it.
	if err := store.Close(); err != nil {
		log.Error("failed to close storage", slog.String("error", err.Error()))
	}

	log.Info("server stopped gracefully")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Staging/production: JSON output, DEBUG and INFO respectively.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
