package domain

import "time"

// Subscriber is a verified email recipient with an optional target filter.
//
// ProcessFilter is a free-text filter: a subscriber matches an event when
// the filter is empty or textually contains the event's target address.
// This is substring matching, not exact address comparison.
type Subscriber struct {
	ID            string
	Email         string
	Verified      bool
	ProcessFilter string
	CreatedAt     time.Time
}

// WebhookType selects the payload formatter for a webhook delivery.
type WebhookType string

const (
	WebhookTypeCustom  WebhookType = "custom"
	WebhookTypeDiscord WebhookType = "discord"
	WebhookTypeSlack   WebhookType = "slack"
)

// WebhookStatus records the outcome of the most recent delivery attempt.
type WebhookStatus string

const (
	WebhookStatusNone    WebhookStatus = ""
	WebhookStatusSuccess WebhookStatus = "success"
	WebhookStatusFailed  WebhookStatus = "failed"
)

// Webhook is a per-subscriber delivery endpoint.
type Webhook struct {
	ID              string
	SubscriberID    string
	URL             string
	Secret          string
	Type            WebhookType
	EventTypes      []string
	Active          bool
	LastStatus      WebhookStatus
	LastError       string
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// WantsEvent reports whether the webhook subscribes to the given action.
func (w *Webhook) WantsEvent(action string) bool {
	for _, t := range w.EventTypes {
		if t == action {
			return true
		}
	}
	return false
}
