package app

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

	"github.com/partyhop/backend/internal/config"
	"github.com/partyhop/backend/internal/content"
	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/handlers"
	"github.com/partyhop/backend/internal/httpserver"
	"github.com/partyhop/backend/internal/middleware"
)

// Run bootstraps the PartyHop backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	comps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	comps.Scheduler.Start(runCtx)
	go pruneCleaner(runCtx, comps.Cleaner, cfg.Content.CacheTTL, logger)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, comps.Handlers)

	handler := middleware.RequestLogger(logger)(middleware.Authenticate(comps.Sessions)(mux))

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "addr", srv.Addr(), "lifecycle_interval", cfg.Lifecycle.Interval.String())

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case serveErr = <-srvErr:
		if serveErr != nil {
			logger.Error("http server stopped", "error", serveErr)
		}
	}

	// Stop taking requests before draining the workers they feed.
	shutdownErr := httpserver.ShutdownAll(
		srv.Shutdown,
		comps.Scheduler.Shutdown,
		cleanup,
	)
	return errors.Join(serveErr, shutdownErr)
}

// pruneCleaner evicts expired cleaner cache entries until ctx is cancelled.
func pruneCleaner(ctx context.Context, cleaner *content.CachingCleaner, interval time.Duration, logger *slog.Logger) {
	if cleaner == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := cleaner.Prune(); removed > 0 {
				logger.Debug("pruned cleaner cache", "removed", removed)
			}
		}
	}
}
