// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/automaton/internal/actionservice"
	"github.com/starford/automaton/internal/actionstore"
	"github.com/starford/automaton/internal/api"
	"github.com/starford/automaton/internal/mcpserver"
	"github.com/starford/automaton/internal/opener"
	"github.com/starford/automaton/internal/prefs"
	"github.com/starford/automaton/internal/sse"
)

// App holds the wired components shared by every command.
type App struct {
	cfg    *Config
	logger *slog.Logger
	prefs  prefs.Provider
	store  *actionstore.Store
	svc    *actionservice.Service
}

// New builds the logger, preference store, action store and service, and
// loads persisted actions.
func New(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("prefs_backend", cfg.Prefs.Backend),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.Any("schemes", cfg.Schemes.Whitelist().List()),
		slog.String("opener_mode", cfg.Opener.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	p, err := prefs.New(cfg.Prefs.Backend, cfg.Prefs.Path)
	if err != nil {
		return nil, fmt.Errorf("init prefs: %w", err)
	}

	o := app.opener
	if o == nil {
		o, err = opener.New(cfg.Opener.Mode, cfg.Opener.Command, logger)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("init opener: %w", err)
		}
	}

	store := actionstore.New(p, logger)
	store.Load(ctx)

	return &App{
		cfg:    cfg,
		logger: logger,
		prefs:  p,
		store:  store,
		svc:    actionservice.NewService(store, cfg.Schemes.Whitelist(), o),
	}, nil
}

// Service returns the action service.
func (a *App) Service() *actionservice.Service {
	return a.svc
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close releases the preference store.
func (a *App) Close() error {
	return a.prefs.Close()
}

// startWatcher reloads the store when the json preference file is changed
// by another process. Other backends have no file to watch.
func (a *App) startWatcher(ctx context.Context, g *errgroup.Group) {
	f, ok := a.prefs.(*prefs.File)
	if !ok || !a.cfg.Prefs.Watch {
		return
	}
	g.Go(func() error {
		err := prefs.Watch(ctx, f, a.logger, func() {
			a.logger.Info("preferences changed on disk, reloading")
			a.store.Load(ctx)
		})
		if err != nil {
			a.logger.Warn("watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
}

// Run starts the HTTP server with the given options and blocks until a
// shutdown signal or context cancellation.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(ctx, opts...)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Serve(ctx)
}

// Serve runs the HTTP API, the SSE feed and the preference watcher.
func (a *App) Serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// SSE broker fed by store events.
	broker := sse.NewBroker()
	defer broker.Close()
	cancelSub := a.store.Subscribe(broker.PublishActionEvent)
	defer cancelSub()

	apiRouter := api.NewRouter(a.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.prefs.Get(r.Context(), actionstore.SettingsKey); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("actions", a.store.Len()))

	// A shutdown signal cancels the group context, which stops the watcher
	// and the HTTP server together.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(sigCtx)

	a.startWatcher(gCtx, g)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut the server down once a signal arrives or the context ends.
	g.Go(func() error {
		<-gCtx.Done()
		if sigCtx.Err() != nil && ctx.Err() == nil {
			logger.Info("Received shutdown signal")
		} else {
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func (a *App) ServeMCP(ctx context.Context, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := mcpserver.New(a.svc, version)

	g, gCtx := errgroup.WithContext(ctx)
	a.startWatcher(gCtx, g)
	g.Go(func() error {
		defer cancel()
		a.logger.Info("MCP server starting on stdio")
		return srv.ServeStdio()
	})
	return g.Wait()
}
