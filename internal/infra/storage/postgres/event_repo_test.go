package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/arnotify/notifier/internal/core/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return &DB{DB: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func TestEventRepo_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs("proc-1", uint64(42), "transfer", uint64(1500000),
			"msg-42", "wallet-abc", "proc-sender", sqlmock.AnyArg(), `{"ok":true}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &domain.Event{
		ProcessID:   "proc-1",
		Nonce:       42,
		Action:      "transfer",
		BlockHeight: 1500000,
		MessageID:   "msg-42",
		Target:      "wallet-abc",
		From:        "proc-sender",
		Tags:        []domain.Tag{{Name: "Quantity", Value: "1"}},
		Data:        `{"ok":true}`,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestEventRepo_LatestNonce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT nonce FROM events`).
		WithArgs("proc-1").
		WillReturnRows(sqlmock.NewRows([]string{"nonce"}).AddRow(99))

	nonce, ok, err := repo.LatestNonce(context.Background(), "proc-1")
	if err != nil {
		t.Fatalf("LatestNonce failed: %v", err)
	}
	if !ok || nonce != 99 {
		t.Errorf("Expected nonce 99, got %d (ok=%v)", nonce, ok)
	}
}

func TestEventRepo_LatestNonce_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT nonce FROM events`).
		WithArgs("proc-1").
		WillReturnRows(sqlmock.NewRows([]string{"nonce"}))

	nonce, ok, err := repo.LatestNonce(context.Background(), "proc-1")
	if err != nil {
		t.Fatalf("LatestNonce failed: %v", err)
	}
	if ok || nonce != 0 {
		t.Errorf("Expected (0, false) for empty table, got (%d, %v)", nonce, ok)
	}
}

func TestEventRepo_LatestBlockHeight(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(block_height\), 0\) FROM events`).
		WithArgs("proc-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1500000))

	height, err := repo.LatestBlockHeight(context.Background(), "proc-1")
	if err != nil {
		t.Fatalf("LatestBlockHeight failed: %v", err)
	}
	if height != 1500000 {
		t.Errorf("Expected 1500000, got %d", height)
	}
}

func TestEventRepo_MarkProcessed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectExec(`UPDATE events SET processed_at`).
		WithArgs(sqlmock.AnyArg(), "proc-1", uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkProcessed(context.Background(), "proc-1", 42); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestEventRepo_DeleteAboveHeight(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEventRepo(db)

	mock.ExpectExec(`DELETE FROM events`).
		WithArgs("proc-1", uint64(1400000)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteAboveHeight(context.Background(), "proc-1", 1400000)
	if err != nil {
		t.Fatalf("DeleteAboveHeight failed: %v", err)
	}
	if deleted != 7 {
		t.Errorf("Expected 7 deleted, got %d", deleted)
	}
}
