package repositories

import (
	"context"
	"fmt"

	"github.com/partyhop/backend/internal/db"
	"github.com/partyhop/backend/internal/models"
)

// PostgresReportRepository stores moderation reports.
type PostgresReportRepository struct {
	pool db.Pool
}

// NewPostgresReportRepository constructs a report repository backed by PostgreSQL.
func NewPostgresReportRepository(pool db.Pool) *PostgresReportRepository {
	return &PostgresReportRepository{pool: pool}
}

// Create stores report.
func (r *PostgresReportRepository) Create(ctx context.Context, report models.Report) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO reports (id, reporter_id, target_type, target_id, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, report.ID, report.ReporterID, string(report.Target.Kind), report.Target.ID, report.Reason, report.CreatedAt)
	if err != nil {
		return writeError("insert report", err)
	}
	return nil
}
