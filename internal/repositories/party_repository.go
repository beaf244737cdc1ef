package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

const partyColumns = `
    p.id, p.host_id, p.title, p.theme, p.description, p.starts_at, p.location_name, p.city, p.country,
    p.exact_address, p.latitude, p.longitude, p.max_guests, p.price, p.includes_alcohol, p.status,
    p.co_host_ids, p.created_at, p.updated_at,
    (SELECT count(*) FROM party_attendees a WHERE a.party_id = p.id) AS attendee_count`

// PostgresPartyRepository persists parties and applies lifecycle transitions.
type PostgresPartyRepository struct {
	pool db.Pool
}

// NewPostgresPartyRepository constructs a party repository backed by PostgreSQL.
func NewPostgresPartyRepository(pool db.Pool) *PostgresPartyRepository {
	return &PostgresPartyRepository{pool: pool}
}

// Create persists a new party.
func (r *PostgresPartyRepository) Create(ctx context.Context, party models.Party) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO parties (id, host_id, title, theme, description, starts_at, location_name, city, country,
                             exact_address, latitude, longitude, max_guests, price, includes_alcohol, status,
                             co_host_ids, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
    `, party.ID, party.HostID, party.Title, party.Theme, party.Description, party.Date.UTC(), party.LocationName,
		party.City, party.Country, party.ExactAddress, party.Latitude, party.Longitude, party.MaxGuests, party.Price,
		party.IncludesAlcohol, string(party.Status), nonNil(party.CoHostIDs), party.CreatedAt, party.UpdatedAt)
	if err != nil {
		return writeError("insert party", err)
	}

	return nil
}

// FindByID loads a party with its attendee count.
func (r *PostgresPartyRepository) FindByID(ctx context.Context, id string) (models.Party, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Party{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	party, err := scanParty(conn.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties p WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Party{}, ErrNotFound
		}
		return models.Party{}, fmt.Errorf("select party: %w", err)
	}
	return party, nil
}

// Update overwrites every editable column of party, provided the stored status
// is still from. It returns ErrNotFound when the party is gone or its status
// has moved on.
func (r *PostgresPartyRepository) Update(ctx context.Context, party models.Party, from models.PartyStatus) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE parties
        SET title = $2, theme = $3, description = $4, starts_at = $5, location_name = $6, city = $7,
            country = $8, exact_address = $9, latitude = $10, longitude = $11, max_guests = $12,
            price = $13, includes_alcohol = $14, status = $15, co_host_ids = $16, updated_at = $17
        WHERE id = $1 AND status = $18
    `, party.ID, party.Title, party.Theme, party.Description, party.Date.UTC(), party.LocationName, party.City,
		party.Country, party.ExactAddress, party.Latitude, party.Longitude, party.MaxGuests, party.Price,
		party.IncludesAlcohol, string(party.Status), nonNil(party.CoHostIDs), party.UpdatedAt, string(from))
	if err != nil {
		return writeError("update party", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a party. Requests, attendees and reviews cascade.
func (r *PostgresPartyRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM parties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete party: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Search returns parties matching the coarse filters. Distance, sorting and
// paging are applied by the caller.
func (r *PostgresPartyRepository) Search(ctx context.Context, filter models.PartySearch) ([]models.Party, error) {
	var (
		clauses []string
		args    []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "p.status = ANY("+bind(statuses)+")")
	}
	if filter.City != "" {
		clauses = append(clauses, "p.city ILIKE "+bind(likePattern(filter.City)))
	}
	if filter.Country != "" {
		clauses = append(clauses, "p.country ILIKE "+bind(likePattern(filter.Country)))
	}
	if filter.Region != "" {
		p := bind(likePattern(filter.Region))
		clauses = append(clauses, "(p.location_name ILIKE "+p+" OR p.city ILIKE "+p+" OR p.country ILIKE "+p+")")
	}
	if b := filter.Bounds; b != nil {
		clauses = append(clauses,
			"p.latitude BETWEEN "+bind(b.MinLat)+" AND "+bind(b.MaxLat),
			"p.longitude BETWEEN "+bind(b.MinLng)+" AND "+bind(b.MaxLng),
		)
	}

	query := `SELECT ` + partyColumns + ` FROM parties p`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY p.id"

	return r.list(ctx, "search parties", query, args...)
}

// ListByHost returns every party hosted by hostID, newest first.
func (r *PostgresPartyRepository) ListByHost(ctx context.Context, hostID string) ([]models.Party, error) {
	return r.list(ctx, "list hosted parties",
		`SELECT `+partyColumns+` FROM parties p WHERE p.host_id = $1 ORDER BY p.created_at DESC, p.id`, hostID)
}

// ListAttending returns every party userID is on the roster of, soonest first.
func (r *PostgresPartyRepository) ListAttending(ctx context.Context, userID string) ([]models.Party, error) {
	return r.list(ctx, "list attending parties", `
        SELECT `+partyColumns+`
        FROM parties p
        JOIN party_attendees pa ON pa.party_id = p.id
        WHERE pa.user_id = $1
        ORDER BY p.starts_at, p.id
    `, userID)
}

// ListSweepable returns every party the lifecycle scheduler may transition.
func (r *PostgresPartyRepository) ListSweepable(ctx context.Context) ([]models.Party, error) {
	return r.list(ctx, "list sweepable parties",
		`SELECT `+partyColumns+` FROM parties p WHERE p.status <> 'cancelled' ORDER BY p.starts_at, p.id`)
}

// Finish marks a party finished and cancels its pending requests in one
// transaction, returning how many requests were cancelled.
func (r *PostgresPartyRepository) Finish(ctx context.Context, partyID string) (int64, error) {
	var cancelled int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE parties SET status = 'finished', updated_at = now()
            WHERE id = $1 AND status <> 'cancelled'
        `, partyID)
		if err != nil {
			return fmt.Errorf("finish party: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		tag, err = tx.Exec(ctx, `
            UPDATE party_requests SET status = 'cancelled', updated_at = now()
            WHERE party_id = $1 AND status = 'pending'
        `, partyID)
		if err != nil {
			return fmt.Errorf("cancel pending requests: %w", err)
		}
		cancelled = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}

// SetStatus moves a party from one status to another. It returns ErrNotFound
// when the party no longer has status from.
func (r *PostgresPartyRepository) SetStatus(ctx context.Context, partyID string, from, to models.PartyStatus) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE parties SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		partyID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("set party status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresPartyRepository) list(ctx context.Context, op, query string, args ...any) ([]models.Party, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var parties []models.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return parties, nil
}

func scanParty(row pgx.Row) (models.Party, error) {
	var (
		party     models.Party
		status    string
		attendees int64
	)
	err := row.Scan(&party.ID, &party.HostID, &party.Title, &party.Theme, &party.Description, &party.Date,
		&party.LocationName, &party.City, &party.Country, &party.ExactAddress, &party.Latitude, &party.Longitude,
		&party.MaxGuests, &party.Price, &party.IncludesAlcohol, &status, &party.CoHostIDs, &party.CreatedAt,
		&party.UpdatedAt, &attendees)
	if err != nil {
		return models.Party{}, err
	}
	party.Status = models.PartyStatus(status)
	party.Date = party.Date.UTC()
	party.AttendeeCount = int(attendees)
	return party, nil
}

// likePattern wraps s for a case-insensitive substring match, escaping LIKE
// metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
