// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/backlinker/internal/api"
	"github.com/starford/backlinker/internal/index"
	"github.com/starford/backlinker/internal/mcpserver"
	"github.com/starford/backlinker/internal/metrics"
	"github.com/starford/backlinker/internal/noteservice"
	"github.com/starford/backlinker/internal/sse"
	"github.com/starford/backlinker/internal/storage"
	"github.com/starford/backlinker/internal/updater"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeUpdate, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger on stderr; stdout belongs to MCP and reports.
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("corpus_root", cfg.Corpus.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("dry_run", app.dryRun),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Corpus.Root, append(cfg.Corpus.StorageOptions(), storage.WithLogger(logger))...)
	if err != nil {
		return err
	}

	switch app.mode {
	case ModeUpdate:
		return app.runUpdate(ctx, store)
	case ModeWatch:
		return app.runWatch(ctx, store)
	case ModeServe:
		return app.runServe(ctx, store)
	case ModeMCP:
		return app.runMCP(ctx, store)
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func (a *application) updaterOptions(sinks ...updater.Sink) []updater.Option {
	opts := a.config.Mentions.UpdaterOptions()
	return append(opts,
		updater.WithDryRun(a.dryRun),
		updater.WithLogger(a.logger),
		updater.WithSinks(sinks...),
	)
}

// openSnapshot opens the configured database, or nothing when the snapshot
// is disabled.
func (a *application) openSnapshot() (*index.DB, error) {
	if !a.config.SQLite.Enabled() {
		return nil, nil
	}
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return db, nil
}

func (a *application) runUpdate(ctx context.Context, store *storage.FS) error {
	var sinks []updater.Sink
	db, err := a.openSnapshot()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		sinks = append(sinks, index.NewSink(db))
	}

	rep, err := updater.New(store, a.updaterOptions(sinks...)...).Run(ctx)
	if err != nil {
		return err
	}

	if a.report != nil {
		enc := json.NewEncoder(a.report)
		enc.SetIndent("", "  ")
		if err := enc.Encode(noteservice.Summarize(rep)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func (a *application) runWatch(ctx context.Context, store *storage.FS) error {
	var sinks []updater.Sink
	db, err := a.openSnapshot()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		sinks = append(sinks, index.NewSink(db))
	}

	u := updater.New(store, a.updaterOptions(sinks...)...)
	if _, err := u.Run(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return u.Watch(gCtx, store.Root(), store.Match, a.config.Watch.Debounce)
	})

	g.Go(func() error {
		a.awaitSignal(gCtx)
		cancel()
		return nil
	})

	return g.Wait()
}

func (a *application) runServe(ctx context.Context, store *storage.FS) error {
	cfg := a.config
	logger := a.logger

	if !cfg.SQLite.Enabled() {
		return errors.New("serve: sqlite.path is required")
	}
	db, err := a.openSnapshot()
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	broker := sse.NewBroker()
	defer broker.Close()

	u := updater.New(store, a.updaterOptions(index.NewSink(db), m, broker)...)

	// Run initial update.
	if _, err := u.Run(ctx); err != nil {
		logger.Warn("initial update failed", slog.String("error", err.Error()))
	}

	svc := noteservice.NewService(db, u)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := db.LatestRun(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"pending"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return u.Watch(gCtx, store.Root(), store.Match, cfg.Watch.Debounce)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.awaitSignal(gCtx)

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

// errShutdown cancels sibling goroutines once the server is stopping.
var errShutdown = errors.New("shutdown")

func (a *application) runMCP(ctx context.Context, store *storage.FS) error {
	cfg := a.config

	path := cfg.SQLite.Path
	if path == "" {
		f, err := os.CreateTemp("", "backlinker-mcp-*.db")
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		f.Close()
		path = f.Name()
		defer os.Remove(path)
	}
	db, err := index.Open(path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	u := updater.New(store, a.updaterOptions(index.NewSink(db))...)
	if _, err := u.Run(ctx); err != nil {
		return err
	}

	contract := mcpserver.MentionSyntax(cfg.Mentions.Class, cfg.Mentions.StartMarker, cfg.Mentions.EndMarker)
	srv := mcpserver.New(noteservice.NewService(db, u), a.version, contract)

	a.logger.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}

// awaitSignal blocks until SIGINT/SIGTERM or ctx is done.
func (a *application) awaitSignal(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("Context cancelled, initiating shutdown")
	}
}
