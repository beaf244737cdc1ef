package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

// PostgresReviewRepository persists post-party reviews.
type PostgresReviewRepository struct {
	pool db.Pool
}

// NewPostgresReviewRepository constructs a review repository backed by PostgreSQL.
func NewPostgresReviewRepository(pool db.Pool) *PostgresReviewRepository {
	return &PostgresReviewRepository{pool: pool}
}

// Submit stores review and sets the matching rated flag on the guest's
// roster entry. A flag that is already set yields ErrConflict.
func (r *PostgresReviewRepository) Submit(ctx context.Context, review models.Review) error {
	guest, flag := review.TargetID, "host_rated"
	if review.Type == models.GuestReview {
		guest, flag = review.AuthorID, "guest_rated"
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE party_attendees SET `+flag+` = true
            WHERE party_id = $1 AND user_id = $2 AND NOT `+flag, review.PartyID, guest)
		if err != nil {
			return fmt.Errorf("mark attendee rated: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO reviews (id, author_id, target_id, party_id, rating, content, type, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, review.ID, review.AuthorID, review.TargetID, review.PartyID, review.Rating, review.Content,
			string(review.Type), review.CreatedAt)
		if err != nil {
			return writeError("insert review", err)
		}
		return nil
	})
}
