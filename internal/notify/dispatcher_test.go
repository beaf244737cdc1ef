package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/partyhop/backend/internal/models"
)

type recordingStore struct {
	mu    sync.Mutex
	saved []models.Notification
	err   error
	block chan struct{}
}

func (s *recordingStore) Create(_ context.Context, n models.Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, n)
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n.ID)
	return p.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAndDrainsOnShutdown(t *testing.T) {
	store := &recordingStore{}
	publisher := &recordingPublisher{}
	d := NewDispatcher(store, publisher, Config{QueueSize: 10, Workers: 2}, quietLogger())

	for _, id := range []string{"n1", "n2", "n3"} {
		if err := d.Notify(context.Background(), models.Notification{ID: id, UserID: "u1"}); err != nil {
			t.Fatalf("notify %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if store.count() != 3 {
		t.Fatalf("expected 3 stored notifications got %d", store.count())
	}
	if len(publisher.published) != 3 {
		t.Fatalf("expected 3 published notifications got %d", len(publisher.published))
	}

	if err := d.Notify(context.Background(), models.Notification{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed got %v", err)
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestDispatcherSkipsPublishWhenStoreFails(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	publisher := &recordingPublisher{}
	d := NewDispatcher(store, publisher, Config{Workers: 1}, quietLogger())

	if err := d.Notify(context.Background(), models.Notification{ID: "n1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected nothing to be published")
	}
}

func TestDispatcherWithoutPublisher(t *testing.T) {
	store := &recordingStore{}
	d := NewDispatcher(store, nil, Config{}, quietLogger())

	if err := d.Notify(context.Background(), models.Notification{ID: "n1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("expected notification to be stored")
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	store := &recordingStore{block: make(chan struct{})}
	d := NewDispatcher(store, nil, Config{QueueSize: 1, Workers: 1}, quietLogger())

	var full error
	for i := 0; i < 5 && full == nil; i++ {
		full = d.Notify(context.Background(), models.Notification{ID: "n"})
	}
	if !errors.Is(full, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull got %v", full)
	}

	close(store.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestDispatcherShutdownTimeout(t *testing.T) {
	store := &recordingStore{block: make(chan struct{})}
	defer close(store.block)
	d := NewDispatcher(store, nil, Config{QueueSize: 1, Workers: 1}, quietLogger())

	if err := d.Notify(context.Background(), models.Notification{ID: "n1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded got %v", err)
	}
}

func TestDispatcherRejectsCancelledContext(t *testing.T) {
	d := NewDispatcher(&recordingStore{}, nil, Config{}, quietLogger())
	defer d.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Notify(ctx, models.Notification{ID: "n1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

func TestStreamFields(t *testing.T) {
	created := time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC)
	fields := streamFields(models.Notification{ID: "n1", UserID: "u1", Type: models.NotificationPartyRequest, RelatedPartyID: "p1", CreatedAt: created})

	if fields["party_id"] != "p1" || fields["user_id"] != "u1" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["related_user_id"]; ok {
		t.Fatalf("expected empty related user to be omitted")
	}
	if fields["created_at"] != "2024-03-03T10:00:00Z" {
		t.Fatalf("unexpected timestamp %v", fields["created_at"])
	}
}

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	if _, err := NewRedisPublisher("http://not-redis", ""); err == nil {
		t.Fatal("expected error for non-redis url")
	}
	p, err := NewRedisPublisher("redis://localhost:6379/0", "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if p.stream != DefaultStream {
		t.Fatalf("expected default stream got %q", p.stream)
	}
}
