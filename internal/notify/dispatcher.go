package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
	"github.com/arnotify/notifier/internal/metrics"
)

// Channel is one independently failing delivery provider.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Enabled reports whether the channel is configured to run.
	Enabled() bool

	// Send delivers one notification.
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher fans one notification out to every enabled channel.
//
// Channels run concurrently and each invocation sits behind its own
// failure boundary: a panic or error in one channel never prevents any
// other channel from running.
type Dispatcher struct {
	matcher  *Matcher
	events   storage.EventRepository
	channels []Channel
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher over an ordered channel set.
func NewDispatcher(matcher *Matcher, events storage.EventRepository, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		matcher:  matcher,
		events:   events,
		channels: channels,
		log:      slog.Default().With("component", "dispatcher"),
	}
}

// Handle resolves recipients for one accepted event and dispatches it.
// The event's processed marker is set only after the email channel
// completes, or immediately when nothing is interested in it.
func (d *Dispatcher) Handle(ctx context.Context, event *domain.Event) {
	match, err := d.matcher.Match(ctx, event.ProcessID, event.Action, event.Target)
	if err != nil {
		d.log.Error("Failed to match recipients",
			"process", event.ProcessID, "nonce", event.Nonce, "error", err)
		return
	}

	n := &Notification{
		Kind:            KindEvent,
		Title:           EventTitle(event),
		Subject:         fmt.Sprintf("[arnotify] %s", EventTitle(event)),
		Fields:          EventFields(event),
		Event:           event,
		EmailRecipients: match.EmailRecipients,
		Webhooks:        match.Webhooks,
	}

	emailDone := d.Dispatch(ctx, n)

	if emailDone {
		if err := d.events.MarkProcessed(ctx, event.ProcessID, event.Nonce); err != nil {
			d.log.Error("Failed to mark event processed",
				"process", event.ProcessID, "nonce", event.Nonce, "error", err)
		}
	}
}

// Dispatch runs every enabled channel and waits for them to return.
// It reports whether the at-least-once email channel completed; a
// disabled email channel or an empty recipient list counts as complete.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) bool {
	var wg sync.WaitGroup
	var emailOK atomic.Bool
	emailOK.Store(true)

	for _, ch := range d.channels {
		if !ch.Enabled() {
			d.log.Debug("Channel disabled, skipping", "channel", ch.Name())
			continue
		}

		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("Channel panicked", "channel", ch.Name(), "panic", r)
					metrics.ChannelSends.WithLabelValues(ch.Name(), "panic").Inc()
					if ch.Name() == "email" {
						emailOK.Store(false)
					}
				}
			}()

			if err := ch.Send(ctx, n); err != nil {
				d.log.Warn("Channel delivery failed", "channel", ch.Name(), "error", err)
				metrics.ChannelSends.WithLabelValues(ch.Name(), "failure").Inc()
				if ch.Name() == "email" {
					emailOK.Store(false)
				}
				return
			}
			metrics.ChannelSends.WithLabelValues(ch.Name(), "success").Inc()
		}(ch)
	}

	wg.Wait()
	return emailOK.Load()
}
