package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
)

// HealthcheckRepo implements storage.HealthcheckRepository using PostgreSQL.
type HealthcheckRepo struct {
	db *DB
}

// NewHealthcheckRepo creates a new PostgreSQL healthcheck repository.
func NewHealthcheckRepo(db *DB) *HealthcheckRepo {
	return &HealthcheckRepo{db: db}
}

// Append stores one check result.
func (r *HealthcheckRepo) Append(ctx context.Context, rec *domain.HealthcheckRecord) error {
	query := `
		INSERT INTO healthcheck_records (
			id, monitor_id, success, response_time_ms, status_code, error_message, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.MonitorID, rec.Success,
		rec.ResponseTimeMs, rec.StatusCode, rec.ErrorMessage, rec.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append healthcheck record: %w", err)
	}
	return nil
}

// DeleteOlderThan prunes records checked before the cutoff.
func (r *HealthcheckRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM healthcheck_records WHERE checked_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune healthcheck records: %w", err)
	}
	return res.RowsAffected()
}
