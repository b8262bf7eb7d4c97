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

	"github.com/hollis/dealflow/internal/api"
	"github.com/hollis/dealflow/internal/crm"
	"github.com/hollis/dealflow/internal/functions"
	"github.com/hollis/dealflow/internal/ingest"
	"github.com/hollis/dealflow/internal/mcpserver"
	"github.com/hollis/dealflow/internal/metrics"
	"github.com/hollis/dealflow/internal/oplog"
	"github.com/hollis/dealflow/internal/recordstore"
	"github.com/hollis/dealflow/internal/sse"
)

// services bundles the CRM services plus the collaborators Run and
// RunMCP both need.
type services struct {
	contacts *crm.ContactService
	deals    *crm.DealService
	tasks    *crm.TaskService
	importer *ingest.Importer
	events   *oplog.Log
}

func buildServices(cfg *Config, logger *slog.Logger) (*services, error) {
	client, err := recordstore.NewHTTPClient(cfg.Store.BaseURL, cfg.Store.ProjectID, cfg.Store.PublicKey, cfg.Store.Timeout())
	if err != nil {
		return nil, fmt.Errorf("init record store client: %w", err)
	}

	invoker, err := functions.NewHTTPInvoker(cfg.Store.BaseURL, cfg.Store.ProjectID, cfg.Store.PublicKey, cfg.Store.Timeout())
	if err != nil {
		return nil, fmt.Errorf("init function invoker: %w", err)
	}

	var events *oplog.Log
	var sink crm.EventSink
	if cfg.OpLog.Path != "" {
		events, err = oplog.Open(cfg.OpLog.Path)
		if err != nil {
			return nil, fmt.Errorf("init oplog: %w", err)
		}
		sink = events
	}

	contacts := crm.NewContactService(client, logger, sink)
	deals := crm.NewDealService(client, invoker, cfg.Functions.GenerateDealEmail, logger, sink)
	tasks := crm.NewTaskService(client, logger, sink)
	importer := ingest.NewImporter(contacts, logger)

	return &services{
		contacts: contacts,
		deals:    deals,
		tasks:    tasks,
		importer: importer,
		events:   events,
	}, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_base_url", cfg.Store.BaseURL),
		slog.String("oplog_path", cfg.OpLog.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	if svcs.events != nil {
		defer svcs.events.Close()
	}

	// SSE broker.
	broker := sse.NewBroker()

	// Build API handler and router.
	h := api.NewHandler(svcs.contacts, svcs.deals, svcs.tasks, svcs.importer, svcs.events, broker)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics (unauthenticated).
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the import inbox watcher with SSE callback.
	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		g.Go(func() error {
			return ingest.Watch(gCtx, svcs.importer, cfg.Inbox.Path, logger, func(file string, created int) {
				broker.PublishRecordEvent("imported", "contact_c", 0)
			})
		})
	}

	// Start HTTP server.
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		broker.Close()

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

// RunMCP starts the MCP server on stdin/stdout with the given options.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs go to stderr: stdout carries the MCP protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	if svcs.events != nil {
		defer svcs.events.Close()
	}

	srv := mcpserver.New(svcs.contacts, svcs.deals, svcs.tasks, svcs.importer)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
