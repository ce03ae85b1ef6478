package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/arnotify/notifier/internal/core/domain"
)

func webhookRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "subscriber_id", "url", "secret", "type", "event_types",
		"active", "last_status", "last_error", "last_triggered_at", "created_at",
	})
}

func TestWebhookRepo_GetActiveForAction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookRepo(db)

	mock.ExpectQuery(`FROM webhooks`).
		WithArgs("transfer").
		WillReturnRows(webhookRows().AddRow(
			"w-1", "s-1", "https://example.com/hook", "sec", "discord",
			pq.StringArray{"transfer"}, true, "success", "", time.Now(), time.Now(),
		))

	hooks, err := repo.GetActiveForAction(context.Background(), "transfer")
	if err != nil {
		t.Fatalf("GetActiveForAction failed: %v", err)
	}
	if len(hooks) != 1 {
		t.Fatalf("Expected 1 webhook, got %d", len(hooks))
	}

	w := hooks[0]
	if w.ID != "w-1" || w.Type != domain.WebhookTypeDiscord || w.Secret != "sec" {
		t.Errorf("Unexpected webhook: %+v", w)
	}
	if len(w.EventTypes) != 1 || w.EventTypes[0] != "transfer" {
		t.Errorf("Unexpected event types: %v", w.EventTypes)
	}
	if w.LastTriggeredAt == nil {
		t.Error("Expected LastTriggeredAt mapped from nullable column")
	}
}

func TestWebhookRepo_GetByIDs_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewWebhookRepo(db)

	hooks, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if hooks != nil {
		t.Errorf("Expected no query for empty id list, got %v", hooks)
	}
}

func TestWebhookRepo_RecordDelivery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookRepo(db)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE webhooks`).
		WithArgs("failed", "webhook returned status 500", at, "w-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordDelivery(context.Background(), "w-1",
		domain.WebhookStatusFailed, "webhook returned status 500", at)
	if err != nil {
		t.Fatalf("RecordDelivery failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
