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

const userColumns = `id, email, password_hash, display_name, avatar_url, verified, age_verified, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, avatar_url, verified, age_verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Email, user.Password, user.DisplayName, user.AvatarURL, user.Verified, user.AgeVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return writeError("insert user", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// FindByIDs loads every user in ids. Unknown ids are absent from the result.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	users := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users[user.ID] = user
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, password_hash = $3, display_name = $4, avatar_url = $5,
            verified = $6, age_verified = $7, updated_at = $8
        WHERE id = $1
    `, user.ID, user.Email, user.Password, user.DisplayName, user.AvatarURL, user.Verified, user.AgeVerified, user.UpdatedAt)
	if err != nil {
		return writeError("update user", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.AvatarURL,
		&user.Verified, &user.AgeVerified, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// PostgresFriendRepository provides PostgreSQL-backed persistence for friend requests.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// CreateRequest persists a new friend request.
func (r *PostgresFriendRepository) CreateRequest(ctx context.Context, request models.FriendRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_requests (id, requester_id, receiver_id, status, created_at, responded_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, request.ID, request.Requester, request.Receiver, request.Status, request.CreatedAt, request.RespondedAt)
	if err != nil {
		return writeError("insert friend request", err)
	}

	return nil
}

// FindRequest loads a single friend request.
func (r *PostgresFriendRepository) FindRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, requester_id, receiver_id, status, created_at, responded_at
        FROM friend_requests
        WHERE id = $1
    `, requestID)

	req, err := scanFriendRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendRequest{}, ErrNotFound
		}
		return models.FriendRequest{}, fmt.Errorf("select friend request: %w", err)
	}
	return req, nil
}

// ListForUser returns friend requests where the user is the requester or receiver.
func (r *PostgresFriendRepository) ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, requester_id, receiver_id, status, created_at, responded_at
        FROM friend_requests
        WHERE requester_id = $1 OR receiver_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}

	return requests, nil
}

// UpdateStatus updates the status (and responded_at) for a friend request.
func (r *PostgresFriendRepository) UpdateStatus(ctx context.Context, requestID, status string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	respondedAt := sql.NullTime{}
	if status != models.FriendStatusPending {
		respondedAt = sql.NullTime{Valid: true, Time: time.Now().UTC()}
	}

	tag, err := conn.Exec(ctx, `
        UPDATE friend_requests
        SET status = $2, responded_at = $3
        WHERE id = $1
    `, requestID, status, respondedAt)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AreFriends reports whether a and b have an accepted friend request between them.
func (r *PostgresFriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var friends bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friend_requests
            WHERE status = 'accepted'
              AND ((requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1))
        )
    `, a, b).Scan(&friends)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return friends, nil
}

func scanFriendRequest(row pgx.Row) (models.FriendRequest, error) {
	var (
		req         models.FriendRequest
		respondedAt sql.NullTime
	)
	if err := row.Scan(&req.ID, &req.Requester, &req.Receiver, &req.Status, &req.CreatedAt, &respondedAt); err != nil {
		return models.FriendRequest{}, err
	}
	if respondedAt.Valid {
		t := respondedAt.Time.UTC()
		req.RespondedAt = &t
	}
	return req, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FriendRepository = (*PostgresFriendRepository)(nil)
