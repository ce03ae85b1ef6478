package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
)

// SubscriberRepo implements storage.SubscriberRepository using PostgreSQL.
type SubscriberRepo struct {
	db *DB
}

// NewSubscriberRepo creates a new PostgreSQL subscriber repository.
func NewSubscriberRepo(db *DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

type subscriberRow struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	Verified      bool      `db:"verified"`
	ProcessFilter string    `db:"process_filter"`
	CreatedAt     time.Time `db:"created_at"`
}

func (s *subscriberRow) toDomain() *domain.Subscriber {
	return &domain.Subscriber{
		ID:            s.ID,
		Email:         s.Email,
		Verified:      s.Verified,
		ProcessFilter: s.ProcessFilter,
		CreatedAt:     s.CreatedAt,
	}
}

// GetVerified returns all verified subscribers.
func (r *SubscriberRepo) GetVerified(ctx context.Context) ([]*domain.Subscriber, error) {
	query := `
		SELECT id, email, verified, process_filter, created_at
		FROM subscribers
		WHERE verified = TRUE
	`

	var rows []subscriberRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get verified subscribers: %w", err)
	}

	subs := make([]*domain.Subscriber, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toDomain())
	}
	return subs, nil
}

// GetByID retrieves a subscriber by id.
func (r *SubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	query := `
		SELECT id, email, verified, process_filter, created_at
		FROM subscribers
		WHERE id = $1
	`

	var row subscriberRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return row.toDomain(), nil
}

// Create inserts a subscriber.
func (r *SubscriberRepo) Create(ctx context.Context, sub *domain.Subscriber) error {
	query := `
		INSERT INTO subscribers (id, email, verified, process_filter, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.Email, sub.Verified, sub.ProcessFilter)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}
