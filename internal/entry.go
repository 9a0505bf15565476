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

	"github.com/starford/cheatsheet/internal/api"
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/orchestrator"
	"github.com/starford/cheatsheet/internal/remote"
	"github.com/starford/cheatsheet/internal/sse"
	"github.com/starford/cheatsheet/internal/storage"
	"github.com/starford/cheatsheet/internal/topicservice"
)

// runtime holds the components shared by every command.
type runtime struct {
	logger *slog.Logger
	db     *cache.DB
	local  *storage.FS // non-nil in local source mode
	svc    *topicservice.Service
}

func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close cache", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// openSource builds the configured content source. In local mode the
// checkout is returned as well so the watcher can follow it.
func openSource(cfg *Config) (remote.Source, *storage.FS, error) {
	if cfg.Source.Mode == SourceModeLocal {
		if err := os.MkdirAll(cfg.Source.Local.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create checkout dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Source.Local.Path, cfg.Source.Layout())
		if err != nil {
			return nil, nil, fmt.Errorf("init checkout: %w", err)
		}
		return store, store, nil
	}

	gh := cfg.Source.GitHub
	src, err := remote.NewGitHub(remote.GitHubOptions{
		BaseURL:           gh.ContentsURL(),
		Ref:               gh.Ref,
		Token:             gh.Token,
		ContentRoot:       cfg.Source.ContentRoot,
		AppInfoPath:       cfg.Source.AppInfoPath,
		RequestsPerSecond: gh.RequestsPerSecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init github source: %w", err)
	}
	return src, nil, nil
}

func (a *application) start(logger *slog.Logger, orchOpts ...orchestrator.Option) (*runtime, error) {
	cfg := a.config

	src, local, err := openSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := cache.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	return &runtime{
		logger: logger,
		db:     db,
		local:  local,
		svc:    topicservice.NewService(cfg.Courses, src, db, logger, orchOpts...),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.newLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_mode", cfg.Source.Mode),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("courses", len(cfg.Courses)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	notifier := orchestrator.NotifierFunc(func(ev orchestrator.Event) {
		broker.PublishSyncEvent(ev.Course, string(ev.State), ev.Changed(), ev)
	})

	rt, err := app.start(logger, orchestrator.WithNotifier(notifier))
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := rt.svc.Ready(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Warm the cache for every course against the published version.
	g.Go(func() error {
		for _, c := range cfg.Courses {
			res, err := rt.svc.Topics(gCtx, c.Name, orchestrator.Input{})
			if err != nil {
				logger.Warn("initial sync failed",
					slog.String("course", c.Name),
					slog.String("error", err.Error()))
				continue
			}
			logger.Info("initial sync done",
				slog.String("course", c.Name),
				slog.String("staleness", res.Staleness.String()),
				slog.Int("topics", len(res.Topics)))
		}
		return nil
	})

	if rt.local != nil {
		g.Go(func() error {
			err := cache.Watch(gCtx, rt.db, rt.local, cfg.Courses, logger, func(kind, course string, topicID int) {
				broker.PublishTopicEvent(kind, course, topicID)
			})
			if err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

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

		logger.Info("Shutting down server...")
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
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
