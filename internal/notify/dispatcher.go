// Package notify delivers in-app notifications off the request path.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
)

// Store persists notifications so users can list them later.
type Store interface {
	Create(ctx context.Context, notification models.Notification) error
}

// Publisher hands a stored notification to push delivery workers.
type Publisher interface {
	Publish(ctx context.Context, notification models.Notification) error
}

// Config controls the concurrency characteristics of the dispatcher.
type Config struct {
	QueueSize int
	Workers   int
}

var (
	// ErrClosed is returned once Shutdown has been called.
	ErrClosed = errors.New("notification dispatcher closed")
	// ErrQueueFull is returned when the queue cannot take another notification.
	ErrQueueFull = errors.New("notification queue full")
)

const deliveryTimeout = 5 * time.Second

// Dispatcher queues notifications and delivers them from a fixed worker pool.
type Dispatcher struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan models.Notification
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewDispatcher starts the worker pool. publisher may be nil.
func NewDispatcher(store Store, publisher Publisher, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
		jobs:      make(chan models.Notification, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Notify queues n for delivery. It never waits for queue space.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting notifications and waits for the queue to drain.
// Deliveries still running when ctx expires are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	case <-done:
		d.cancel()
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.jobs {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(logging.WithLogger(d.ctx, d.logger), deliveryTimeout)
	defer cancel()

	ctx, span := logging.StartSpan(ctx, "notify.deliver", slog.String("notification_type", string(n.Type)))
	defer span.End()
	logger := logging.FromContext(ctx)

	if d.store == nil {
		logger.Error("notification store missing", "type", n.Type)
		return
	}
	if err := d.store.Create(ctx, n); err != nil {
		span.Fail(err)
		logger.Error("persist notification", "notification_id", n.ID, "recipient", n.UserID, "error", err)
		return
	}
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, n); err != nil {
		span.Fail(err)
		logger.Warn("publish notification", "notification_id", n.ID, "recipient", n.UserID, "error", err)
	}
}
