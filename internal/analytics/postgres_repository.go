package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresRepository stores counters in ip_views and ip_daily_views.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RecordView upserts the per-IP and per-day counters in one transaction.
func (r *PostgresRepository) RecordView(ctx context.Context, ip, userName, day string, at time.Time) error {
	const upsertIP = `
		INSERT INTO ip_views (ip_address, user_name, total_views, first_seen, last_seen)
		VALUES ($1, NULLIF($2, ''), 1, $3, $3)
		ON CONFLICT (ip_address) DO UPDATE
		SET total_views = ip_views.total_views + 1,
			last_seen = EXCLUDED.last_seen,
			user_name = COALESCE(EXCLUDED.user_name, ip_views.user_name)
	`
	const upsertDay = `
		INSERT INTO ip_daily_views (ip_address, day, views)
		VALUES ($1, $2, 1)
		ON CONFLICT (ip_address, day) DO UPDATE
		SET views = ip_daily_views.views + 1
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertIP, ip, userName, at); err != nil {
		return fmt.Errorf("upsert ip view: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertDay, ip, day); err != nil {
		return fmt.Errorf("upsert daily view: %w", err)
	}
	return tx.Commit()
}

// Totals sums today's bucket and the all-time counters.
func (r *PostgresRepository) Totals(ctx context.Context, day string) (Totals, error) {
	const query = `
		SELECT
			COALESCE((SELECT SUM(views) FROM ip_daily_views WHERE day = $1), 0) AS today,
			COALESCE((SELECT SUM(total_views) FROM ip_views), 0) AS total
	`

	var row struct {
		Today int64 `db:"today"`
		Total int64 `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, day); err != nil {
		return Totals{}, err
	}
	return Totals{Today: row.Today, Total: row.Total}, nil
}
