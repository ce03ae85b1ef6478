package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage/memory"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeChannel struct {
	name     string
	disabled bool
	err      error
	panics   bool
	calls    int
}

func (c *fakeChannel) Name() string  { return c.name }
func (c *fakeChannel) Enabled() bool { return !c.disabled }

func (c *fakeChannel) Send(ctx context.Context, n *Notification) error {
	c.calls++
	if c.panics {
		panic("channel exploded")
	}
	return c.err
}

func seedEvent(t *testing.T, events *memory.EventRepo) *domain.Event {
	t.Helper()
	e := &domain.Event{
		ProcessID:   "proc-1",
		Nonce:       10,
		Action:      "transfer",
		BlockHeight: 100,
		MessageID:   "msg-10",
		CreatedAt:   time.Now(),
	}
	if err := events.Upsert(context.Background(), e); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return e
}

func newTestDispatcher(store *memory.Storage, events *memory.EventRepo, channels ...Channel) *Dispatcher {
	matcher := NewMatcher(memory.NewSubscriberRepo(store), memory.NewWebhookRepo(store))
	return NewDispatcher(matcher, events, channels...)
}

// =============================================================================
// Tests
// =============================================================================

func TestDispatcher_MarksProcessedOnEmailSuccess(t *testing.T) {
	store := memory.NewStorage()
	events := memory.NewEventRepo(store)
	e := seedEvent(t, events)

	email := &fakeChannel{name: "email"}
	d := newTestDispatcher(store, events, email)

	d.Handle(context.Background(), e)

	if email.calls != 1 {
		t.Fatalf("Expected 1 email send, got %d", email.calls)
	}
	stored := events.Events(e.ProcessID)[0]
	if stored.ProcessedAt == nil {
		t.Error("Expected event marked processed after email success")
	}
}

func TestDispatcher_EmailFailureLeavesUnprocessed(t *testing.T) {
	store := memory.NewStorage()
	events := memory.NewEventRepo(store)
	e := seedEvent(t, events)

	email := &fakeChannel{name: "email", err: errors.New("smtp down")}
	d := newTestDispatcher(store, events, email)

	d.Handle(context.Background(), e)

	stored := events.Events(e.ProcessID)[0]
	if stored.ProcessedAt != nil {
		t.Error("Expected event to stay unprocessed after email failure")
	}
}

func TestDispatcher_DisabledEmailCountsAsComplete(t *testing.T) {
	store := memory.NewStorage()
	events := memory.NewEventRepo(store)
	e := seedEvent(t, events)

	email := &fakeChannel{name: "email", disabled: true}
	d := newTestDispatcher(store, events, email)

	d.Handle(context.Background(), e)

	if email.calls != 0 {
		t.Errorf("Expected disabled channel not called, got %d calls", email.calls)
	}
	stored := events.Events(e.ProcessID)[0]
	if stored.ProcessedAt == nil {
		t.Error("Expected event marked processed when email is disabled")
	}
}

func TestDispatcher_ChannelIsolation(t *testing.T) {
	store := memory.NewStorage()
	events := memory.NewEventRepo(store)
	e := seedEvent(t, events)

	email := &fakeChannel{name: "email"}
	webhook := &fakeChannel{name: "webhook", panics: true}
	social := &fakeChannel{name: "social", err: errors.New("rate limited")}
	d := newTestDispatcher(store, events, email, webhook, social)

	d.Handle(context.Background(), e)

	if email.calls != 1 || webhook.calls != 1 || social.calls != 1 {
		t.Errorf("Expected every channel attempted, got email=%d webhook=%d social=%d",
			email.calls, webhook.calls, social.calls)
	}
	stored := events.Events(e.ProcessID)[0]
	if stored.ProcessedAt == nil {
		t.Error("Expected webhook/social failures not to block the processed marker")
	}
}

func TestDispatcher_DispatchReportsEmailOutcome(t *testing.T) {
	store := memory.NewStorage()
	events := memory.NewEventRepo(store)

	ok := newTestDispatcher(store, events, &fakeChannel{name: "email"}).
		Dispatch(context.Background(), &Notification{Kind: KindMonitorDown, Title: "t"})
	if !ok {
		t.Error("Expected true when email succeeds")
	}

	failed := newTestDispatcher(store, events, &fakeChannel{name: "email", err: errors.New("x")}).
		Dispatch(context.Background(), &Notification{Kind: KindMonitorDown, Title: "t"})
	if failed {
		t.Error("Expected false when email fails")
	}
}
