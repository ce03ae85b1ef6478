// Package worker holds the background maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arnotify/notifier/internal/infra/storage"
	"github.com/arnotify/notifier/internal/metrics"
)

// DefaultRetention is how long healthcheck history is kept.
const DefaultRetention = 14 * 24 * time.Hour

// Pruner removes healthcheck records older than the retention window.
// Monitor status and alert state live on the monitor row and are not
// affected by pruning.
type Pruner struct {
	healthchecks storage.HealthcheckRepository
	retention    time.Duration
	log          *slog.Logger
}

// NewPruner creates a pruner. A non-positive retention falls back to the
// default 14 days.
func NewPruner(healthchecks storage.HealthcheckRepository, retention time.Duration) *Pruner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Pruner{
		healthchecks: healthchecks,
		retention:    retention,
		log:          slog.Default().With("component", "pruner"),
	}
}

// Run prunes expired records once.
func (p *Pruner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-p.retention)

	deleted, err := p.healthchecks.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune healthcheck records: %w", err)
	}

	if deleted > 0 {
		metrics.HealthchecksPruned.Add(float64(deleted))
		p.log.Info("Pruned healthcheck history", "deleted", deleted, "cutoff", cutoff)
	} else {
		p.log.Debug("No healthcheck records to prune", "cutoff", cutoff)
	}
	return nil
}
