package worker

import (
	"context"
	"testing"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage/memory"
)

func TestPruner_RemovesOnlyExpiredRecords(t *testing.T) {
	store := memory.NewStorage()
	repo := memory.NewHealthcheckRepo(store)
	ctx := context.Background()

	now := time.Now().UTC()
	add := func(id string, age time.Duration) {
		t.Helper()
		err := repo.Append(ctx, &domain.HealthcheckRecord{
			ID: id, MonitorID: "m-1", Success: true, CheckedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	add("old", 15*24*time.Hour)
	add("boundary", 13*24*time.Hour)
	add("fresh", time.Hour)

	p := NewPruner(repo, 14*24*time.Hour)
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	recs := repo.Records()
	if len(recs) != 2 {
		t.Fatalf("Expected 2 surviving records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.ID == "old" {
			t.Error("Expected 15-day-old record pruned")
		}
	}
}

func TestPruner_DefaultRetention(t *testing.T) {
	store := memory.NewStorage()
	p := NewPruner(memory.NewHealthcheckRepo(store), 0)
	if p.retention != DefaultRetention {
		t.Errorf("Expected default retention, got %s", p.retention)
	}
}

func TestPruner_EmptyStore(t *testing.T) {
	store := memory.NewStorage()
	p := NewPruner(memory.NewHealthcheckRepo(store), time.Hour)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed on empty store: %v", err)
	}
}
