package domain

import "time"

// MonitorStatus is the gateway monitor state machine state.
type MonitorStatus string

const (
	MonitorStatusUnknown   MonitorStatus = "unknown"
	MonitorStatusHealthy   MonitorStatus = "healthy"
	MonitorStatusUnhealthy MonitorStatus = "unhealthy"
)

// GatewayMonitor is a registered AR.IO gateway healthcheck target.
//
// Status, ConsecutiveFailures and the alert guard timestamps are mutated
// only by the monitor scheduler; everything else is configuration.
type GatewayMonitor struct {
	ID                  string
	SubscriberID        string
	FQDN                string
	Enabled             bool
	CheckIntervalMin    int
	FailureThreshold    int
	Status              MonitorStatus
	ConsecutiveFailures int
	LastCheckAt         *time.Time
	LastAlertSentAt     *time.Time
	LastRecoverySentAt  *time.Time
	NotifyEmail         bool
	CreatedAt           time.Time
}

// Due reports whether the monitor should be checked at the given time.
func (m *GatewayMonitor) Due(now time.Time) bool {
	if !m.Enabled {
		return false
	}
	if m.LastCheckAt == nil {
		return true
	}
	return !now.Before(m.LastCheckAt.Add(time.Duration(m.CheckIntervalMin) * time.Minute))
}

// HealthcheckRecord is one append-only check result. Records are pruned
// after the retention window independently of monitor status.
type HealthcheckRecord struct {
	ID             string
	MonitorID      string
	Success        bool
	ResponseTimeMs int64
	StatusCode     int
	ErrorMessage   string
	CheckedAt      time.Time
}

// MonitorWebhookLink scopes which webhooks fire for which transition.
type MonitorWebhookLink struct {
	MonitorID        string
	WebhookID        string
	NotifyOnDown     bool
	NotifyOnRecovery bool
}
