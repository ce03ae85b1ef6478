package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Upsert inserts or updates an event keyed by (process_id, nonce).
func (r *EventRepo) Upsert(ctx context.Context, event *domain.Event) error {
	tags, err := json.Marshal(event.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO events (
			process_id, nonce, action, block_height, message_id, target, from_address, tags, data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (process_id, nonce) DO UPDATE SET
			block_height = EXCLUDED.block_height,
			message_id = EXCLUDED.message_id,
			data = EXCLUDED.data
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ProcessID, event.Nonce, event.Action, event.BlockHeight,
		event.MessageID, event.Target, event.From, tags, event.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

// LatestNonce returns the highest stored nonce for a process.
func (r *EventRepo) LatestNonce(ctx context.Context, processID string) (uint64, bool, error) {
	query := `SELECT nonce FROM events WHERE process_id = $1 ORDER BY nonce DESC LIMIT 1`

	var nonce uint64
	err := r.db.GetContext(ctx, &nonce, query, processID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latest nonce: %w", err)
	}
	return nonce, true, nil
}

// LatestBlockHeight returns the highest stored block height for a process.
func (r *EventRepo) LatestBlockHeight(ctx context.Context, processID string) (uint64, error) {
	query := `SELECT COALESCE(MAX(block_height), 0) FROM events WHERE process_id = $1`

	var height uint64
	if err := r.db.GetContext(ctx, &height, query, processID); err != nil {
		return 0, fmt.Errorf("failed to get latest block height: %w", err)
	}
	return height, nil
}

// MarkProcessed sets processed_at for an event.
func (r *EventRepo) MarkProcessed(ctx context.Context, processID string, nonce uint64) error {
	query := `UPDATE events SET processed_at = $1 WHERE process_id = $2 AND nonce = $3`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), processID, nonce)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// DeleteAboveHeight removes events above a block height.
func (r *EventRepo) DeleteAboveHeight(ctx context.Context, processID string, height uint64) (int64, error) {
	query := `DELETE FROM events WHERE process_id = $1 AND block_height > $2`
	res, err := r.db.ExecContext(ctx, query, processID, height)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}
