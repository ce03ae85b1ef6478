package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
)

// MonitorRepo implements storage.MonitorRepository using PostgreSQL.
type MonitorRepo struct {
	db *DB
}

// NewMonitorRepo creates a new PostgreSQL monitor repository.
func NewMonitorRepo(db *DB) *MonitorRepo {
	return &MonitorRepo{db: db}
}

type monitorRow struct {
	ID                  string       `db:"id"`
	SubscriberID        string       `db:"subscriber_id"`
	FQDN                string       `db:"fqdn"`
	Enabled             bool         `db:"enabled"`
	CheckIntervalMin    int          `db:"check_interval_minutes"`
	FailureThreshold    int          `db:"failure_threshold"`
	Status              string       `db:"status"`
	ConsecutiveFailures int          `db:"consecutive_failures"`
	LastCheckAt         sql.NullTime `db:"last_check_at"`
	LastAlertSentAt     sql.NullTime `db:"last_alert_sent_at"`
	LastRecoverySentAt  sql.NullTime `db:"last_recovery_sent_at"`
	NotifyEmail         bool         `db:"notify_email"`
	CreatedAt           time.Time    `db:"created_at"`
}

func (m *monitorRow) toDomain() *domain.GatewayMonitor {
	mon := &domain.GatewayMonitor{
		ID:                  m.ID,
		SubscriberID:        m.SubscriberID,
		FQDN:                m.FQDN,
		Enabled:             m.Enabled,
		CheckIntervalMin:    m.CheckIntervalMin,
		FailureThreshold:    m.FailureThreshold,
		Status:              domain.MonitorStatus(m.Status),
		ConsecutiveFailures: m.ConsecutiveFailures,
		NotifyEmail:         m.NotifyEmail,
		CreatedAt:           m.CreatedAt,
	}
	if m.LastCheckAt.Valid {
		t := m.LastCheckAt.Time
		mon.LastCheckAt = &t
	}
	if m.LastAlertSentAt.Valid {
		t := m.LastAlertSentAt.Time
		mon.LastAlertSentAt = &t
	}
	if m.LastRecoverySentAt.Valid {
		t := m.LastRecoverySentAt.Time
		mon.LastRecoverySentAt = &t
	}
	return mon
}

const monitorColumns = `id, subscriber_id, fqdn, enabled, check_interval_minutes, failure_threshold, status, consecutive_failures, last_check_at, last_alert_sent_at, last_recovery_sent_at, notify_email, created_at`

// GetDue returns enabled monitors whose check interval has elapsed.
func (r *MonitorRepo) GetDue(ctx context.Context, now time.Time) ([]*domain.GatewayMonitor, error) {
	query := `
		SELECT ` + monitorColumns + `
		FROM gateway_monitors
		WHERE enabled = TRUE
		  AND (last_check_at IS NULL
		       OR last_check_at + (check_interval_minutes * INTERVAL '1 minute') <= $1)
	`

	var rows []monitorRow
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to get due monitors: %w", err)
	}

	monitors := make([]*domain.GatewayMonitor, 0, len(rows))
	for i := range rows {
		monitors = append(monitors, rows[i].toDomain())
	}
	return monitors, nil
}

// GetAll returns all monitors.
func (r *MonitorRepo) GetAll(ctx context.Context) ([]*domain.GatewayMonitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM gateway_monitors ORDER BY fqdn`

	var rows []monitorRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get monitors: %w", err)
	}

	monitors := make([]*domain.GatewayMonitor, 0, len(rows))
	for i := range rows {
		monitors = append(monitors, rows[i].toDomain())
	}
	return monitors, nil
}

// RecordCheck persists the post-check state of a monitor.
func (r *MonitorRepo) RecordCheck(
	ctx context.Context,
	id string,
	status domain.MonitorStatus,
	consecutiveFailures int,
	checkedAt time.Time,
) error {
	query := `
		UPDATE gateway_monitors
		SET status = $1, consecutive_failures = $2, last_check_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, string(status), consecutiveFailures, checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to record check: %w", err)
	}
	return nil
}

// SetAlertSent marks a down alert as emitted and clears the recovery guard.
func (r *MonitorRepo) SetAlertSent(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE gateway_monitors
		SET last_alert_sent_at = $1, last_recovery_sent_at = NULL
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to set alert sent: %w", err)
	}
	return nil
}

// SetRecoverySent marks a recovery alert as emitted and clears the alert guard.
func (r *MonitorRepo) SetRecoverySent(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE gateway_monitors
		SET last_recovery_sent_at = $1, last_alert_sent_at = NULL
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to set recovery sent: %w", err)
	}
	return nil
}

// Links returns the webhook links configured for a monitor.
func (r *MonitorRepo) Links(ctx context.Context, monitorID string) ([]*domain.MonitorWebhookLink, error) {
	query := `
		SELECT monitor_id, webhook_id, notify_on_down, notify_on_recovery
		FROM monitor_webhooks
		WHERE monitor_id = $1
	`

	type linkRow struct {
		MonitorID        string `db:"monitor_id"`
		WebhookID        string `db:"webhook_id"`
		NotifyOnDown     bool   `db:"notify_on_down"`
		NotifyOnRecovery bool   `db:"notify_on_recovery"`
	}

	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, query, monitorID); err != nil {
		return nil, fmt.Errorf("failed to get monitor links: %w", err)
	}

	links := make([]*domain.MonitorWebhookLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, &domain.MonitorWebhookLink{
			MonitorID:        row.MonitorID,
			WebhookID:        row.WebhookID,
			NotifyOnDown:     row.NotifyOnDown,
			NotifyOnRecovery: row.NotifyOnRecovery,
		})
	}
	return links, nil
}

// Create inserts a monitor.
func (r *MonitorRepo) Create(ctx context.Context, m *domain.GatewayMonitor) error {
	query := `
		INSERT INTO gateway_monitors (
			id, subscriber_id, fqdn, enabled, check_interval_minutes,
			failure_threshold, status, consecutive_failures, notify_email, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.SubscriberID, m.FQDN, m.Enabled, m.CheckIntervalMin,
		m.FailureThreshold, string(m.Status), m.ConsecutiveFailures, m.NotifyEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	return nil
}
