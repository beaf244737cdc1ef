package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

// DefaultNotificationLimit caps ListForUser when no limit is given.
const DefaultNotificationLimit = 50

// PostgresNotificationRepository stores in-app notifications.
type PostgresNotificationRepository struct {
	pool db.Pool
}

// NewPostgresNotificationRepository constructs a notification repository backed by PostgreSQL.
func NewPostgresNotificationRepository(pool db.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

// Create stores a notification.
func (r *PostgresNotificationRepository) Create(ctx context.Context, n models.Notification) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, related_party_id, related_user_id, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, n.ID, n.UserID, n.Type, n.Title, n.Message, nullString(n.RelatedPartyID), nullString(n.RelatedUserID), n.Read, n.CreatedAt)
	if err != nil {
		return writeError("insert notification", err)
	}
	return nil
}

// ListForUser returns userID's most recent notifications, newest first.
func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, type, title, message, related_party_id, related_user_id, read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n            models.Notification
			party, other sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &party, &other, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.RelatedPartyID = party.String
		n.RelatedUserID = other.String
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags a notification owned by userID as read.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
