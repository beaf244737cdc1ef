package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

// DefaultInterval is how often the scheduler sweeps when no interval is configured.
const DefaultInterval = time.Hour

// Store persists the status changes made by a sweep.
type Store interface {
	// ListSweepable returns every party that is not cancelled.
	ListSweepable(ctx context.Context) ([]models.Party, error)
	// Finish marks the party finished and cancels its pending requests
	// atomically. It returns repositories.ErrNotFound if the party is gone or
	// was cancelled in the meantime.
	Finish(ctx context.Context, partyID string) (int64, error)
	// SetStatus moves the party from one status to another. It returns
	// repositories.ErrNotFound if the party is no longer in from.
	SetStatus(ctx context.Context, partyID string, from, to models.PartyStatus) error
}

// Config controls sweep timing.
type Config struct {
	Interval time.Duration
	Window   time.Duration
}

// SweepResult summarises a single sweep.
type SweepResult struct {
	Checked           int
	Finished          int
	Started           int
	Reopened          int
	CancelledRequests int64
	// Skipped counts parties changed by someone else between read and write.
	Skipped int
	Failed  int
}

// Scheduler periodically applies Evaluate to every party.
type Scheduler struct {
	store    Store
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewScheduler constructs a scheduler. It does nothing until Start is called.
func NewScheduler(store Store, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultOngoingWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		interval: cfg.Interval,
		window:   cfg.Window,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNowFunc allows tests to override the time source.
func (s *Scheduler) WithNowFunc(now func() time.Time) {
	s.now = now
}

// Start runs a sweep immediately and then once per interval until ctx is
// cancelled or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.once.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})
		go s.loop(ctx)
	})
}

// Shutdown stops the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("lifecycle sweep failed", "error", err)
	}
}

// Sweep evaluates every non-cancelled party once. A failure on one party is
// logged and counted; it never stops the remaining parties from being processed.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := logging.StartSpan(ctx, "lifecycle.sweep")
	defer span.End()
	logger := logging.FromContext(ctx)

	var result SweepResult

	parties, err := s.store.ListSweepable(ctx)
	if err != nil {
		span.Fail(err)
		return result, err
	}

	now := s.now()
	for _, party := range parties {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		next, changed := Evaluate(party.Status, party.Date, now, s.window)
		if !changed {
			continue
		}

		err := s.apply(ctx, party, next, &result)
		if errors.Is(err, repositories.ErrNotFound) {
			result.Skipped++
			logger.Info("party changed during sweep, skipped", "partyId", party.ID, "from", party.Status, "to", next)
			continue
		}
		if err != nil {
			result.Failed++
			span.Fail(err)
			logger.Error("lifecycle transition failed", "partyId", party.ID, "from", party.Status, "to", next, "error", err)
			continue
		}
		logger.Info("party status changed", "partyId", party.ID, "from", party.Status, "to", next)
	}

	logger.Info("lifecycle sweep completed",
		"checked", result.Checked,
		"finished", result.Finished,
		"started", result.Started,
		"reopened", result.Reopened,
		"cancelledRequests", result.CancelledRequests,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Scheduler) apply(ctx context.Context, party models.Party, next models.PartyStatus, result *SweepResult) error {
	switch next {
	case models.PartyFinished:
		cancelled, err := s.store.Finish(ctx, party.ID)
		if err != nil {
			return err
		}
		result.Finished++
		result.CancelledRequests += cancelled
	case models.PartyOngoing:
		if err := s.store.SetStatus(ctx, party.ID, party.Status, next); err != nil {
			return err
		}
		result.Started++
	case models.PartyUpcoming:
		if err := s.store.SetStatus(ctx, party.ID, party.Status, next); err != nil {
			return err
		}
		result.Reopened++
	}
	return nil
}
