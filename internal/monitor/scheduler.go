package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
	"github.com/arnotify/notifier/internal/metrics"
	"github.com/arnotify/notifier/internal/notify"
)

// Alerter dispatches one notification across the configured channels.
// Satisfied by *notify.Dispatcher.
type Alerter interface {
	Dispatch(ctx context.Context, n *notify.Notification) bool
}

// GatewayChecker probes one gateway. Satisfied by *Checker.
type GatewayChecker interface {
	Check(ctx context.Context, fqdn string) CheckResult
}

// Config holds the monitor scheduler settings.
type Config struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	CheckTimeout  time.Duration `yaml:"check_timeout"`
	Concurrency   int           `yaml:"concurrency"`
}

// Scheduler sweeps due gateway monitors, records check history and
// drives the healthy/unhealthy state machine with alert hysteresis.
type Scheduler struct {
	cfg          Config
	checker      GatewayChecker
	monitors     storage.MonitorRepository
	healthchecks storage.HealthcheckRepository
	webhooks     storage.WebhookRepository
	subscribers  storage.SubscriberRepository
	alerter      Alerter
	log          *slog.Logger
}

// NewScheduler creates a monitor scheduler.
func NewScheduler(
	cfg Config,
	checker GatewayChecker,
	monitors storage.MonitorRepository,
	healthchecks storage.HealthcheckRepository,
	webhooks storage.WebhookRepository,
	subscribers storage.SubscriberRepository,
	alerter Alerter,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Scheduler{
		cfg:          cfg,
		checker:      checker,
		monitors:     monitors,
		healthchecks: healthchecks,
		webhooks:     webhooks,
		subscribers:  subscribers,
		alerter:      alerter,
		log:          slog.Default().With("component", "monitor"),
	}
}

// Sweep checks every due monitor once. Monitors are probed concurrently
// up to the configured limit; a failure on one monitor never blocks the
// rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) error {
	due, err := s.monitors.GetDue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to load due monitors: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.log.Debug("Sweeping due monitors", "count", len(due))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Concurrency)
	for _, m := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(m *domain.GatewayMonitor) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("Monitor check panicked", "monitor", m.ID, "fqdn", m.FQDN, "panic", r)
				}
			}()
			s.checkMonitor(ctx, m)
		}(m)
	}
	wg.Wait()
	return nil
}

// checkMonitor probes one gateway, persists the result and emits the
// transition alerts the hysteresis guards allow.
func (s *Scheduler) checkMonitor(ctx context.Context, m *domain.GatewayMonitor) {
	result := s.checker.Check(ctx, m.FQDN)
	checkedAt := time.Now().UTC()

	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	metrics.MonitorChecks.WithLabelValues(outcome).Inc()

	rec := &domain.HealthcheckRecord{
		ID:             uuid.NewString(),
		MonitorID:      m.ID,
		Success:        result.Success,
		ResponseTimeMs: result.ResponseTime.Milliseconds(),
		StatusCode:     result.StatusCode,
		ErrorMessage:   result.Error,
		CheckedAt:      checkedAt,
	}
	if err := s.healthchecks.Append(ctx, rec); err != nil {
		s.log.Error("Failed to append healthcheck record", "monitor", m.ID, "error", err)
	}

	status := domain.MonitorStatusUnhealthy
	failures := m.ConsecutiveFailures + 1
	if result.Success {
		status = domain.MonitorStatusHealthy
		failures = 0
	}

	if err := s.monitors.RecordCheck(ctx, m.ID, status, failures, checkedAt); err != nil {
		s.log.Error("Failed to record monitor check", "monitor", m.ID, "error", err)
		return
	}

	if result.Success {
		s.log.Debug("Gateway healthy", "monitor", m.ID, "fqdn", m.FQDN,
			"response_ms", result.ResponseTime.Milliseconds())
		s.maybeAlertRecovery(ctx, m, result, checkedAt)
		return
	}

	s.log.Warn("Gateway check failed", "monitor", m.ID, "fqdn", m.FQDN,
		"failures", failures, "error", result.Error)
	s.maybeAlertDown(ctx, m, result, failures, checkedAt)
}

// maybeAlertDown emits a down alert on the check that reaches the
// failure threshold. The last_alert_sent_at guard keeps an ongoing
// outage from alerting on every subsequent check.
func (s *Scheduler) maybeAlertDown(ctx context.Context, m *domain.GatewayMonitor, result CheckResult, failures int, at time.Time) {
	if failures < m.FailureThreshold || m.LastAlertSentAt != nil {
		return
	}

	n := s.buildAlert(ctx, m, notify.KindMonitorDown, result, failures)
	s.alerter.Dispatch(ctx, n)
	metrics.MonitorAlerts.WithLabelValues("down").Inc()

	if err := s.monitors.SetAlertSent(ctx, m.ID, at); err != nil {
		s.log.Error("Failed to set alert guard", "monitor", m.ID, "error", err)
	}
	s.log.Info("Gateway down alert sent", "monitor", m.ID, "fqdn", m.FQDN, "failures", failures)
}

// maybeAlertRecovery emits a recovery alert on the first healthy check
// after a down alert. A recovery with no preceding down alert is silent.
func (s *Scheduler) maybeAlertRecovery(ctx context.Context, m *domain.GatewayMonitor, result CheckResult, at time.Time) {
	if m.LastAlertSentAt == nil || m.LastRecoverySentAt != nil {
		return
	}

	n := s.buildAlert(ctx, m, notify.KindMonitorRecovery, result, 0)
	s.alerter.Dispatch(ctx, n)
	metrics.MonitorAlerts.WithLabelValues("recovery").Inc()

	if err := s.monitors.SetRecoverySent(ctx, m.ID, at); err != nil {
		s.log.Error("Failed to set recovery guard", "monitor", m.ID, "error", err)
	}
	s.log.Info("Gateway recovery alert sent", "monitor", m.ID, "fqdn", m.FQDN)
}

// buildAlert assembles the notification for one monitor transition,
// resolving the owner email and the transition-scoped webhooks.
func (s *Scheduler) buildAlert(ctx context.Context, m *domain.GatewayMonitor, kind notify.Kind, result CheckResult, failures int) *notify.Notification {
	var title, subject string
	fields := []notify.Field{
		{Label: "Gateway", Value: m.FQDN},
	}

	switch kind {
	case notify.KindMonitorDown:
		title = fmt.Sprintf("Gateway %s is down", m.FQDN)
		subject = fmt.Sprintf("[arnotify] Gateway down: %s", m.FQDN)
		fields = append(fields, notify.Field{Label: "Consecutive Failures", Value: strconv.Itoa(failures)})
		if result.StatusCode != 0 {
			fields = append(fields, notify.Field{Label: "Status Code", Value: strconv.Itoa(result.StatusCode)})
		}
		if result.Error != "" {
			fields = append(fields, notify.Field{Label: "Error", Value: result.Error})
		}
	default:
		title = fmt.Sprintf("Gateway %s recovered", m.FQDN)
		subject = fmt.Sprintf("[arnotify] Gateway recovered: %s", m.FQDN)
		fields = append(fields, notify.Field{
			Label: "Response Time",
			Value: fmt.Sprintf("%dms", result.ResponseTime.Milliseconds()),
		})
	}

	n := &notify.Notification{
		Kind:    kind,
		Title:   title,
		Subject: subject,
		Fields:  fields,
	}

	if m.NotifyEmail {
		sub, err := s.subscribers.GetByID(ctx, m.SubscriberID)
		if err != nil {
			s.log.Error("Failed to load monitor owner", "monitor", m.ID, "error", err)
		} else if sub.Verified {
			n.EmailRecipients = []string{sub.Email}
		}
	}

	links, err := s.monitors.Links(ctx, m.ID)
	if err != nil {
		s.log.Error("Failed to load monitor webhook links", "monitor", m.ID, "error", err)
		return n
	}

	var ids []string
	for _, l := range links {
		if (kind == notify.KindMonitorDown && l.NotifyOnDown) ||
			(kind == notify.KindMonitorRecovery && l.NotifyOnRecovery) {
			ids = append(ids, l.WebhookID)
		}
	}
	if len(ids) == 0 {
		return n
	}

	hooks, err := s.webhooks.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Error("Failed to load monitor webhooks", "monitor", m.ID, "error", err)
		return n
	}
	n.Webhooks = hooks
	return n
}
