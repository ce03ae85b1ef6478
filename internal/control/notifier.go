// Package control wires the pipeline together and manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	"github.com/arnotify/notifier/internal/core/config"
	"github.com/arnotify/notifier/internal/core/worker"
	"github.com/arnotify/notifier/internal/infra/arweave"
	redisclient "github.com/arnotify/notifier/internal/infra/redis"
	"github.com/arnotify/notifier/internal/infra/storage"
	"github.com/arnotify/notifier/internal/infra/storage/memory"
	"github.com/arnotify/notifier/internal/infra/storage/postgres"
	"github.com/arnotify/notifier/internal/ingest"
	"github.com/arnotify/notifier/internal/monitor"
	"github.com/arnotify/notifier/internal/notify"
	"github.com/arnotify/notifier/migrations"
)

// Notifier is the main application struct that manages the pipeline
// lifecycle: per-process fetchers, the monitor scheduler, the retention
// pruner and the ops server.
type Notifier struct {
	cfg *config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client

	events   storage.EventRepository
	monitors storage.MonitorRepository

	fetchers  []*ingest.Fetcher
	scheduler *monitor.Scheduler
	pruner    *worker.Pruner
	cron      *cron.Cron

	webhooks  *notify.WebhookChannel
	opsServer *Server
	log       *slog.Logger
}

// NewNotifier creates a Notifier with all dependencies initialized.
func NewNotifier(cfg *config.AppConfig) (*Notifier, error) {
	n := &Notifier{
		cfg: cfg,
		log: slog.Default().With("component", "notifier"),
	}

	// 1. Storage
	var (
		events       storage.EventRepository
		subscribers  storage.SubscriberRepository
		webhookRepo  storage.WebhookRepository
		monitors     storage.MonitorRepository
		healthchecks storage.HealthcheckRepository
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		n.db = db

		// Migrations ship embedded in the binary.
		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "."); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		events = postgres.NewEventRepo(db)
		subscribers = postgres.NewSubscriberRepo(db)
		webhookRepo = postgres.NewWebhookRepo(db)
		monitors = postgres.NewMonitorRepo(db)
		healthchecks = postgres.NewHealthcheckRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStorage()
		events = memory.NewEventRepo(store)
		subscribers = memory.NewSubscriberRepo(store)
		webhookRepo = memory.NewWebhookRepo(store)
		monitors = memory.NewMonitorRepo(store)
		healthchecks = memory.NewHealthcheckRepo(store)
		slog.Info("Using Memory storage")
	}
	n.events = events
	n.monitors = monitors

	// 2. Redis coordination (optional)
	var coord ingest.Coordinator
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, running with local cycle guard only", "error", err)
		} else {
			n.redisClient = client
			coord = client
		}
	}

	// 3. Channels and dispatcher
	emailChannel := notify.NewEmailChannel(cfg.Email)
	webhookChannel := notify.NewWebhookChannel(webhookRepo)
	socialChannel := notify.NewSocialChannel(cfg.Social)
	n.webhooks = webhookChannel

	matcher := notify.NewMatcher(subscribers, webhookRepo)
	dispatcher := notify.NewDispatcher(matcher, events,
		emailChannel, webhookChannel, socialChannel)

	// 4. Fetchers, one per configured process
	gateway := arweave.NewClient(cfg.Arweave)
	for _, p := range cfg.Processes {
		fetcher := ingest.NewFetcher(ingest.Config{
			ProcessID:     p.ID,
			Owners:        p.Owners,
			Actions:       p.Actions,
			PageSize:      p.PageSize,
			PollInterval:  p.PollInterval,
			CycleTimeout:  p.CycleTimeout,
			SkipToCurrent: p.SkipToCurrent,
		}, gateway, events, dispatcher, coord)
		n.fetchers = append(n.fetchers, fetcher)
	}

	// 5. Monitor scheduler and pruner on a shared cron
	checker := monitor.NewChecker(cfg.Monitor.CheckTimeout)
	n.scheduler = monitor.NewScheduler(monitor.Config{
		SweepInterval: cfg.Monitor.SweepInterval,
		CheckTimeout:  cfg.Monitor.CheckTimeout,
		Concurrency:   cfg.Monitor.Concurrency,
	}, checker, monitors, healthchecks, webhookRepo, subscribers, dispatcher)

	n.pruner = worker.NewPruner(healthchecks, cfg.Monitor.Retention)

	// 6. Ops server
	n.opsServer = NewServer(n.db, cfg.Server.Port)

	return n, nil
}

// Start starts all background loops. It returns once everything is
// launched; the loops themselves run until ctx is cancelled or Stop is
// called.
func (n *Notifier) Start(ctx context.Context) error {
	n.log.Info("Starting notifier", "processes", len(n.fetchers), "port", n.cfg.Server.Port)

	go func() {
		if err := n.opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Error("Ops server failed", "error", err)
		}
	}()

	if n.db != nil {
		n.db.StartMetricsCollector(ctx)
	}

	for _, f := range n.fetchers {
		go func(f *ingest.Fetcher) {
			if err := f.Start(ctx); err != nil {
				n.log.Error("Fetcher failed", "error", err)
			}
		}(f)
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", n.cfg.Monitor.SweepInterval), func() {
		if err := n.scheduler.Sweep(ctx); err != nil {
			n.log.Error("Monitor sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule monitor sweep: %w", err)
	}
	if _, err := c.AddFunc("@every 1h", func() {
		if err := n.pruner.Run(ctx); err != nil {
			n.log.Error("Healthcheck prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruner: %w", err)
	}
	c.Start()
	n.cron = c

	return nil
}

// Stop stops the notifier, draining in-flight webhook deliveries.
func (n *Notifier) Stop(ctx context.Context) error {
	n.log.Info("Stopping notifier...")

	for _, f := range n.fetchers {
		_ = f.Stop()
	}

	if n.cron != nil {
		cronCtx := n.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-time.After(10 * time.Second):
			n.log.Warn("Timed out waiting for cron jobs")
		}
	}

	n.webhooks.Wait()

	if n.redisClient != nil {
		if err := n.redisClient.Close(); err != nil {
			n.log.Warn("Failed to close Redis", "error", err)
		}
	}

	err := n.opsServer.Stop(ctx)

	if n.db != nil {
		if cerr := n.db.Close(); cerr != nil {
			n.log.Warn("Failed to close database", "error", cerr)
		}
	}
	return err
}
