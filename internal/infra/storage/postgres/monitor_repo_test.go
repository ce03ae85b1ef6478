package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/arnotify/notifier/internal/core/domain"
)

func TestMonitorRepo_GetDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMonitorRepo(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM gateway_monitors`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "subscriber_id", "fqdn", "enabled", "check_interval_minutes",
			"failure_threshold", "status", "consecutive_failures",
			"last_check_at", "last_alert_sent_at", "last_recovery_sent_at",
			"notify_email", "created_at",
		}).AddRow(
			"m-1", "s-1", "gw.example.com", true, 5,
			3, "unhealthy", 2,
			now.Add(-10*time.Minute), nil, nil,
			true, now.Add(-24*time.Hour),
		))

	due, err := repo.GetDue(context.Background(), now)
	if err != nil {
		t.Fatalf("GetDue failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Expected 1 due monitor, got %d", len(due))
	}

	m := due[0]
	if m.Status != domain.MonitorStatusUnhealthy || m.ConsecutiveFailures != 2 {
		t.Errorf("Unexpected monitor state: %s/%d", m.Status, m.ConsecutiveFailures)
	}
	if m.LastCheckAt == nil || m.LastAlertSentAt != nil {
		t.Error("Nullable timestamps mapped incorrectly")
	}
}

func TestMonitorRepo_AlertGuardsAreExclusive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMonitorRepo(db)
	at := time.Now().UTC()

	// Setting the down guard must clear the recovery guard in the same
	// statement, and vice versa.
	mock.ExpectExec(`SET last_alert_sent_at = \$1, last_recovery_sent_at = NULL`).
		WithArgs(at, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetAlertSent(context.Background(), "m-1", at); err != nil {
		t.Fatalf("SetAlertSent failed: %v", err)
	}

	mock.ExpectExec(`SET last_recovery_sent_at = \$1, last_alert_sent_at = NULL`).
		WithArgs(at, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetRecoverySent(context.Background(), "m-1", at); err != nil {
		t.Fatalf("SetRecoverySent failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
