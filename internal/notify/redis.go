package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partyhop/backend/internal/models"
)

// DefaultStream is the Redis stream push workers consume from.
const DefaultStream = "partyhop:notifications"

const streamMaxLen = 100000

// RedisPublisher appends notifications to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher connects to the Redis instance at url.
func NewRedisPublisher(url, stream string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: redis.NewClient(opts), stream: stream}, nil
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errors.New("redis publisher not configured")
	}
	return p.client.Ping(ctx).Err()
}

// Publish appends n to the stream, trimming old entries approximately.
func (p *RedisPublisher) Publish(ctx context.Context, n models.Notification) error {
	if p == nil || p.client == nil {
		return errors.New("redis publisher not configured")
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: streamFields(n),
	}).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *RedisPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func streamFields(n models.Notification) map[string]any {
	fields := map[string]any{
		"id":         n.ID,
		"user_id":    n.UserID,
		"type":       n.Type,
		"title":      n.Title,
		"message":    n.Message,
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if n.RelatedPartyID != "" {
		fields["party_id"] = n.RelatedPartyID
	}
	if n.RelatedUserID != "" {
		fields["related_user_id"] = n.RelatedUserID
	}
	return fields
}
