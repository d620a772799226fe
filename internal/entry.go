// Package internal provides the main application initialization and
// runtime logic.
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

	"github.com/daverre/graphpress/internal/cache"
	"github.com/daverre/graphpress/internal/graph"
	"github.com/daverre/graphpress/internal/ingest"
	"github.com/daverre/graphpress/internal/luahook"
	"github.com/daverre/graphpress/internal/pipeline"
	"github.com/daverre/graphpress/internal/policy"
	"github.com/daverre/graphpress/internal/render"
	"github.com/daverre/graphpress/internal/report"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source_path", cfg.Source.Path),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("script_path", cfg.Script.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// The cache store is shared across all workers and runs; an
	// unreachable cache aborts the run.
	cacheStore, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer cacheStore.Close()

	hook, err := luahook.Load(cfg.Script.Path)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	export := func(ctx context.Context) (pipeline.Stats, error) {
		return runExport(ctx, cfg, hook, cacheStore, logger)
	}

	if !cfg.Source.Watch && !cfg.Serve.Enabled {
		stats, err := export(ctx)
		if err != nil {
			return err
		}
		if cfg.Policy.StrictWarnings && stats.Warnings > 0 {
			return fmt.Errorf("completed with %d warnings", stats.Warnings)
		}
		return nil
	}

	// Long-running mode: initial export, then watcher and/or preview
	// server until a shutdown signal arrives.
	if _, err := export(ctx); err != nil {
		return err
	}

	// A signal must cancel the watcher too, not only the server, so the
	// group runs under its own cancellable context.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Source.Watch {
		g.Go(func() error {
			return watchAndRun(gCtx, cfg.Source.Path, logger, func(ctx context.Context) error {
				stats, err := export(ctx)
				if err != nil {
					logger.Error("re-export failed", slog.String("error", err.Error()))
					return nil
				}
				logger.Info("re-export complete",
					slog.Int("wrote", stats.Wrote),
					slog.Int("skipped", stats.Skipped))
				return nil
			})
		})
	}

	var httpServer *http.Server
	if cfg.Serve.Enabled {
		httpServer = previewServer(cfg)
		g.Go(func() error {
			logger.Info("Starting preview server", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("preview server error: %w", err)
			}
			return nil
		})
	}

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

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("preview server shutdown error", slog.String("error", err.Error()))
			}
		}
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully")
	return nil
}

// runExport performs one full export: ingest, two-phase pipeline,
// output. Each run gets a fresh store and report collector; the cache
// store persists across runs.
func runExport(ctx context.Context, cfg *Config, hook policy.Hook, cacheStore *cache.Store, logger *slog.Logger) (pipeline.Stats, error) {
	store := graph.NewStore()
	if err := ingest.LoadFile(cfg.Source.Path, store, logger); err != nil {
		return pipeline.Stats{}, err
	}

	rep := report.New()
	ev := policy.New(store, hook, policy.Config{
		Autotag:       cfg.Policy.Autotag,
		NamespaceTags: cfg.Policy.NamespaceTags,
		OmitTags:      cfg.Policy.OmitTags,
	}, logger, rep)

	pipe := pipeline.New(store, ev, cacheStore, render.New(), pipeline.Config{
		OutputDir:     cfg.Output.Dir,
		Extension:     cfg.Output.Extension,
		Workers:       cfg.Policy.Workers,
		MaxEmbedDepth: cfg.Policy.MaxEmbedDepth,
	}, logger, rep)

	stats, err := pipe.Run(ctx)
	if err != nil {
		return stats, err
	}
	logger.Info("Export complete",
		slog.Int("pages", stats.Pages),
		slog.Int("included", stats.Included),
		slog.Int("wrote", stats.Wrote),
		slog.Int("skipped", stats.Skipped),
		slog.Int("warnings", stats.Warnings))
	return stats, nil
}

// previewServer serves the rendered output directory with health
// endpoints for container probes.
func previewServer(cfg *Config) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

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

	r.Handle("/*", http.FileServer(http.Dir(cfg.Output.Dir)))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Serve.Port),
		Handler: r,
	}
}
