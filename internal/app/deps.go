package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/partyhop/backend/internal/auth"
	"github.com/partyhop/backend/internal/config"
	"github.com/partyhop/backend/internal/content"
	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/handlers"
	"github.com/partyhop/backend/internal/lifecycle"
	"github.com/partyhop/backend/internal/middleware"
	"github.com/partyhop/backend/internal/notify"
	"github.com/partyhop/backend/internal/parties"
	"github.com/partyhop/backend/internal/repositories"
)

var (
	_ lifecycle.Store = (*repositories.PostgresPartyRepository)(nil)
	_ notify.Store    = (*repositories.PostgresNotificationRepository)(nil)
)

// components holds everything serve needs beyond the HTTP handlers.
type components struct {
	Handlers   handlers.Dependencies
	Sessions   *auth.Manager
	Scheduler  *lifecycle.Scheduler
	Dispatcher *notify.Dispatcher
	Cleaner    *content.CachingCleaner
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers and background workers. The returned cleanup stops the dispatcher
// and releases the Redis connection; callers stop the scheduler themselves.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (components, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	checks := make(map[string]handlers.Pinger)
	if pinger, ok := pool.(handlers.Pinger); ok {
		checks["database"] = pinger
	}

	var (
		publisher notify.Publisher
		redisPub  *notify.RedisPublisher
	)
	if cfg.Notifications.RedisURL != "" {
		p, err := notify.NewRedisPublisher(cfg.Notifications.RedisURL, cfg.Notifications.Stream)
		if err != nil {
			return components{}, nil, fmt.Errorf("configure notification stream: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, push delivery will retry per notification", "error", err)
		}
		redisPub = p
		publisher = p
		checks["redis"] = p
	}

	partyRepo := repositories.NewPostgresPartyRepository(pool)
	notificationRepo := repositories.NewPostgresNotificationRepository(pool)
	userRepo := repositories.NewPostgresUserRepository(pool)
	friendRepo := repositories.NewPostgresFriendRepository(pool)

	dispatcher := notify.NewDispatcher(notificationRepo, publisher, notify.Config{
		QueueSize: cfg.Notifications.QueueSize,
		Workers:   cfg.Notifications.Workers,
	}, logger)

	cleaner := content.NewCachingCleaner(content.NewWordListCleaner(cfg.Content.BlockedWords), cfg.Content.CacheTTL)

	service := parties.NewService(parties.Deps{
		Parties:       partyRepo,
		Requests:      repositories.NewPostgresRequestRepository(pool),
		Attendees:     repositories.NewPostgresAttendeeRepository(pool),
		Reviews:       repositories.NewPostgresReviewRepository(pool),
		Reports:       repositories.NewPostgresReportRepository(pool),
		Users:         userRepo,
		Friends:       friendRepo,
		Notifier:      dispatcher,
		Cleaner:       cleaner,
		OngoingWindow: cfg.Lifecycle.OngoingWindow,
	})

	sessions := auth.NewManager(cfg.Sessions.AccessTTL, cfg.Sessions.RefreshTTL, repositories.NewPostgresSessionStore(pool))

	limiterTTL := 2 * cfg.RateLimit.Window
	scheduler := lifecycle.NewScheduler(partyRepo, lifecycle.Config{
		Interval: cfg.Lifecycle.Interval,
		Window:   cfg.Lifecycle.OngoingWindow,
	}, logger)

	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop notification dispatcher: %w", err))
		}
		if err := redisPub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		return errors.Join(errs...)
	}

	return components{
		Handlers: handlers.Dependencies{
			Users:         userRepo,
			Sessions:      sessions,
			Friends:       friendRepo,
			Parties:       service,
			Notifications: notificationRepo,
			AuthLimiter:   middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, limiterTTL),
			JoinLimiter:   middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, limiterTTL),
			HealthChecks:  checks,
		},
		Sessions:   sessions,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Cleaner:    cleaner,
	}, cleanup, nil
}
