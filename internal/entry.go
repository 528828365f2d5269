// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ariadna/internal/api"
	"github.com/starford/ariadna/internal/index"
	"github.com/starford/ariadna/internal/mcpserver"
	"github.com/starford/ariadna/internal/session"
	"github.com/starford/ariadna/internal/sse"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/vcs"
)

// runtime holds the components shared by the HTTP and MCP modes.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	sess   *session.Session
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.version == "" {
		app.version = "dev"
	}
	return app, nil
}

// open initializes storage, the index and the editing session. The caller
// closes rt.db.
func (a *application) open(ctx context.Context, logOut io.Writer, notifier session.Notifier) (*runtime, error) {
	cfg := a.config
	if a.logOut != nil {
		logOut = a.logOut
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithIndex(db),
		session.WithRecentLimit(cfg.Session.RecentLimit),
		session.WithAutoReload(cfg.Session.AutoReload),
	}
	if notifier != nil {
		sessOpts = append(sessOpts, session.WithNotifier(notifier))
	}
	if cfg.Session.DetectVCS {
		sessOpts = append(sessOpts, session.WithRevision(vcs.Revision))
	}
	sess := session.New(store, db, sessOpts...)

	if cfg.Session.RestoreLast {
		opened, err := sess.Restore(ctx)
		switch {
		case err != nil:
			logger.Warn("restore last thread failed", slog.String("error", err.Error()))
		case opened:
			logger.Info("Restored last thread", slog.String("location", sess.Location()))
		}
	}

	return &runtime{cfg: cfg, logger: logger, store: store, db: db, sess: sess}, nil
}

// watch keeps the index in step with the workspace and forwards file events
// to the session and to cb.
func (rt *runtime) watch(ctx context.Context, cb index.EventCallback) error {
	err := index.Watch(ctx, rt.db, rt.store, rt.store.Root(), rt.logger, func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
		rt.sess.HandleFileEvent(kind, path)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.RefreshThrottle)
	defer broker.Close()

	rt, err := app.open(ctx, os.Stdout, broker)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	logger := rt.logger

	apiRouter := api.NewRouter(rt.sess, rt.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.watch(gCtx, broker.PublishFileEvent)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		if rt.sess.Dirty() {
			logger.Warn("Shutting down with unsaved changes", slog.String("location", rt.sess.Location()))
		}
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP protocol on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	rt, err := app.open(ctx, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := rt.watch(ctx, nil); err != nil {
			rt.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(rt.sess, rt.db, app.version)
	rt.logger.Info("Serving MCP on stdio")
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
