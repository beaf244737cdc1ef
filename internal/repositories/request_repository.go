package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

const requestColumns = `id, party_id, user_id, message, pledged_items, coming_with, status, created_at, updated_at, responded_at`

// PostgresRequestRepository persists party join requests.
type PostgresRequestRepository struct {
	pool db.Pool
}

// NewPostgresRequestRepository constructs a request repository backed by PostgreSQL.
func NewPostgresRequestRepository(pool db.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{pool: pool}
}

// Create stores a new request. The partial unique index on live requests
// turns a duplicate into ErrConflict.
func (r *PostgresRequestRepository) Create(ctx context.Context, request models.PartyRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO party_requests (id, party_id, user_id, message, pledged_items, coming_with, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, request.ID, request.PartyID, request.UserID, request.Message, request.PledgedItems,
		nonNil(request.ComingWith), string(request.Status), request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return writeError("insert party request", err)
	}
	return nil
}

// FindByID loads a request.
func (r *PostgresRequestRepository) FindByID(ctx context.Context, id string) (models.PartyRequest, error) {
	return r.findOne(ctx, `SELECT `+requestColumns+` FROM party_requests WHERE id = $1`, id)
}

// FindActive returns the pending or accepted request userID has on partyID.
func (r *PostgresRequestRepository) FindActive(ctx context.Context, partyID, userID string) (models.PartyRequest, error) {
	return r.findOne(ctx, `
        SELECT `+requestColumns+`
        FROM party_requests
        WHERE party_id = $1 AND user_id = $2 AND status IN ('pending', 'accepted')
        LIMIT 1
    `, partyID, userID)
}

// ListByParty returns every request for partyID, newest first.
func (r *PostgresRequestRepository) ListByParty(ctx context.Context, partyID string) ([]models.PartyRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM party_requests WHERE party_id = $1 ORDER BY created_at DESC, id`, partyID)
}

// ListByUser returns every request userID has made, newest first.
func (r *PostgresRequestRepository) ListByUser(ctx context.Context, userID string) ([]models.PartyRequest, error) {
	return r.list(ctx, `SELECT `+requestColumns+` FROM party_requests WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

// Accept marks a pending request accepted and adds the attendee row in one transaction.
func (r *PostgresRequestRepository) Accept(ctx context.Context, requestID string, attendee models.PartyAttendee, at time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE party_requests
            SET status = 'accepted', responded_at = $2, updated_at = $2
            WHERE id = $1 AND status = 'pending'
        `, requestID, at)
		if err != nil {
			return fmt.Errorf("accept party request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO party_attendees (id, party_id, user_id, host_rated, guest_rated, created_at)
            VALUES ($1, $2, $3, false, false, $4)
            ON CONFLICT (party_id, user_id) DO NOTHING
        `, attendee.ID, attendee.PartyID, attendee.UserID, attendee.CreatedAt)
		if err != nil {
			return writeError("insert party attendee", err)
		}
		return nil
	})
}

// Decline marks a pending request declined.
func (r *PostgresRequestRepository) Decline(ctx context.Context, requestID string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE party_requests
        SET status = 'declined', responded_at = $2, updated_at = $2
        WHERE id = $1 AND status = 'pending'
    `, requestID, at)
	if err != nil {
		return fmt.Errorf("decline party request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePending removes a request that is still pending.
func (r *PostgresRequestRepository) DeletePending(ctx context.Context, requestID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM party_requests WHERE id = $1 AND status = 'pending'`, requestID)
	if err != nil {
		return fmt.Errorf("delete party request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRequestRepository) findOne(ctx context.Context, query string, args ...any) (models.PartyRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PartyRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	req, err := scanRequest(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PartyRequest{}, ErrNotFound
		}
		return models.PartyRequest{}, fmt.Errorf("select party request: %w", err)
	}
	return req, nil
}

func (r *PostgresRequestRepository) list(ctx context.Context, query string, args ...any) ([]models.PartyRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query party requests: %w", err)
	}
	defer rows.Close()

	var requests []models.PartyRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate party requests: %w", err)
	}
	return requests, nil
}

func scanRequest(row pgx.Row) (models.PartyRequest, error) {
	var (
		req         models.PartyRequest
		status      string
		respondedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.PartyID, &req.UserID, &req.Message, &req.PledgedItems, &req.ComingWith,
		&status, &req.CreatedAt, &req.UpdatedAt, &respondedAt)
	if err != nil {
		return models.PartyRequest{}, err
	}
	req.Status = models.RequestStatus(status)
	if respondedAt.Valid {
		t := respondedAt.Time.UTC()
		req.RespondedAt = &t
	}
	return req, nil
}
