package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

const attendeeColumns = `pa.id, pa.party_id, pa.user_id, pa.host_rated, pa.guest_rated, pa.created_at`

// PostgresAttendeeRepository reads party rosters.
type PostgresAttendeeRepository struct {
	pool db.Pool
}

// NewPostgresAttendeeRepository constructs an attendee repository backed by PostgreSQL.
func NewPostgresAttendeeRepository(pool db.Pool) *PostgresAttendeeRepository {
	return &PostgresAttendeeRepository{pool: pool}
}

// Find returns the roster entry for userID on partyID.
func (r *PostgresAttendeeRepository) Find(ctx context.Context, partyID, userID string) (models.PartyAttendee, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PartyAttendee{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	attendee, err := scanAttendee(conn.QueryRow(ctx,
		`SELECT `+attendeeColumns+` FROM party_attendees pa WHERE pa.party_id = $1 AND pa.user_id = $2`, partyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PartyAttendee{}, ErrNotFound
		}
		return models.PartyAttendee{}, fmt.Errorf("select party attendee: %w", err)
	}
	return attendee, nil
}

// ListByParty returns the roster of partyID in join order.
func (r *PostgresAttendeeRepository) ListByParty(ctx context.Context, partyID string) ([]models.PartyAttendee, error) {
	return r.list(ctx, `
        SELECT `+attendeeColumns+`
        FROM party_attendees pa
        WHERE pa.party_id = $1
        ORDER BY pa.created_at, pa.id
    `, partyID)
}

// Preview returns up to limit attendee avatar URLs per party, oldest attendees first.
func (r *PostgresAttendeeRepository) Preview(ctx context.Context, partyIDs []string, limit int) (map[string][]string, error) {
	previews := make(map[string][]string, len(partyIDs))
	if len(partyIDs) == 0 || limit <= 0 {
		return previews, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT party_id, avatar_url
        FROM (
            SELECT pa.party_id, u.avatar_url,
                   ROW_NUMBER() OVER (PARTITION BY pa.party_id ORDER BY pa.created_at, pa.id) AS position
            FROM party_attendees pa
            JOIN users u ON u.id = pa.user_id
            WHERE pa.party_id = ANY($1)
        ) ranked
        WHERE position <= $2
        ORDER BY party_id, position
    `, partyIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendee previews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var partyID, avatar string
		if err := rows.Scan(&partyID, &avatar); err != nil {
			return nil, fmt.Errorf("scan attendee preview: %w", err)
		}
		previews[partyID] = append(previews[partyID], avatar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendee previews: %w", err)
	}
	return previews, nil
}

// ListUnratedGuests returns attendees of hostID's finished parties the host
// has not rated yet.
func (r *PostgresAttendeeRepository) ListUnratedGuests(ctx context.Context, hostID string) ([]models.PartyAttendee, error) {
	return r.list(ctx, `
        SELECT `+attendeeColumns+`
        FROM party_attendees pa
        JOIN parties p ON p.id = pa.party_id
        WHERE p.host_id = $1 AND p.status = 'finished' AND NOT pa.host_rated
        ORDER BY p.starts_at DESC, pa.party_id, pa.created_at
    `, hostID)
}

// ListUnratedHosts returns userID's attendance on finished parties whose host
// userID has not rated yet.
func (r *PostgresAttendeeRepository) ListUnratedHosts(ctx context.Context, userID string) ([]models.PartyAttendee, error) {
	return r.list(ctx, `
        SELECT `+attendeeColumns+`
        FROM party_attendees pa
        JOIN parties p ON p.id = pa.party_id
        WHERE pa.user_id = $1 AND p.status = 'finished' AND NOT pa.guest_rated
        ORDER BY p.starts_at DESC, pa.party_id
    `, userID)
}

func (r *PostgresAttendeeRepository) list(ctx context.Context, query string, args ...any) ([]models.PartyAttendee, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query party attendees: %w", err)
	}
	defer rows.Close()

	var attendees []models.PartyAttendee
	for rows.Next() {
		attendee, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party attendee: %w", err)
		}
		attendees = append(attendees, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate party attendees: %w", err)
	}
	return attendees, nil
}

func scanAttendee(row pgx.Row) (models.PartyAttendee, error) {
	var a models.PartyAttendee
	err := row.Scan(&a.ID, &a.PartyID, &a.UserID, &a.HostRated, &a.GuestRated, &a.CreatedAt)
	return a, err
}
