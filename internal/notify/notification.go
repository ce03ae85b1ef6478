// Package notify fans events and monitor alerts out to independently
// failing delivery channels.
package notify

import (
	"github.com/arnotify/notifier/internal/core/domain"
)

// Kind distinguishes pipeline events from monitor alert notifications.
type Kind string

const (
	KindEvent           Kind = "event"
	KindMonitorDown     Kind = "monitor-down"
	KindMonitorRecovery Kind = "monitor-recovery"
)

// Field is one ordered label/value pair rendered by every channel.
type Field struct {
	Label string
	Value string
}

// Notification is the channel-facing projection of an event or alert.
// All channel payloads (email body, webhook JSON, social post) are built
// from the same Title and ordered Fields.
type Notification struct {
	Kind            Kind
	Title           string
	Subject         string
	Fields          []Field
	Event           *domain.Event // nil for monitor alerts
	EmailRecipients []string
	Webhooks        []*domain.Webhook
}
