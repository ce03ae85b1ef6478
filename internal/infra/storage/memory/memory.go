// Package memory provides in-memory repository implementations used in
// tests and when no database URL is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
)

// Storage holds all in-memory state behind a single lock.
type Storage struct {
	mu           sync.RWMutex
	events       map[string]map[uint64]*domain.Event // processID -> nonce -> event
	subscribers  map[string]*domain.Subscriber
	webhooks     map[string]*domain.Webhook
	monitors     map[string]*domain.GatewayMonitor
	links        map[string][]*domain.MonitorWebhookLink // monitorID -> links
	healthchecks []*domain.HealthcheckRecord
}

// NewStorage creates empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		events:      make(map[string]map[uint64]*domain.Event),
		subscribers: make(map[string]*domain.Subscriber),
		webhooks:    make(map[string]*domain.Webhook),
		monitors:    make(map[string]*domain.GatewayMonitor),
		links:       make(map[string][]*domain.MonitorWebhookLink),
	}
}

// =============================================================================
// EventRepository
// =============================================================================

// EventRepo implements storage.EventRepository in memory.
type EventRepo struct{ s *Storage }

// NewEventRepo creates an in-memory event repository.
func NewEventRepo(s *Storage) *EventRepo { return &EventRepo{s: s} }

func (r *EventRepo) Upsert(ctx context.Context, event *domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byNonce, ok := r.s.events[event.ProcessID]
	if !ok {
		byNonce = make(map[uint64]*domain.Event)
		r.s.events[event.ProcessID] = byNonce
	}
	e := *event
	if prev, ok := byNonce[event.Nonce]; ok {
		// Preserve processed marker across re-delivery
		e.ProcessedAt = prev.ProcessedAt
		e.CreatedAt = prev.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	byNonce[event.Nonce] = &e
	return nil
}

func (r *EventRepo) LatestNonce(ctx context.Context, processID string) (uint64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byNonce, ok := r.s.events[processID]
	if !ok || len(byNonce) == 0 {
		return 0, false, nil
	}
	var latest uint64
	for n := range byNonce {
		if n > latest {
			latest = n
		}
	}
	return latest, true, nil
}

func (r *EventRepo) LatestBlockHeight(ctx context.Context, processID string) (uint64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var max uint64
	for _, e := range r.s.events[processID] {
		if e.BlockHeight > max {
			max = e.BlockHeight
		}
	}
	return max, nil
}

func (r *EventRepo) MarkProcessed(ctx context.Context, processID string, nonce uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[processID][nonce]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now()
	e.ProcessedAt = &now
	return nil
}

func (r *EventRepo) DeleteAboveHeight(ctx context.Context, processID string, height uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for n, e := range r.s.events[processID] {
		if e.BlockHeight > height {
			delete(r.s.events[processID], n)
			deleted++
		}
	}
	return deleted, nil
}

// Events returns stored events for a process sorted by nonce (test helper).
func (r *EventRepo) Events(processID string) []*domain.Event {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var events []*domain.Event
	for _, e := range r.s.events[processID] {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Nonce < events[j].Nonce })
	return events
}

// =============================================================================
// SubscriberRepository
// =============================================================================

// SubscriberRepo implements storage.SubscriberRepository in memory.
type SubscriberRepo struct{ s *Storage }

// NewSubscriberRepo creates an in-memory subscriber repository.
func NewSubscriberRepo(s *Storage) *SubscriberRepo { return &SubscriberRepo{s: s} }

func (r *SubscriberRepo) GetVerified(ctx context.Context) ([]*domain.Subscriber, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var subs []*domain.Subscriber
	for _, s := range r.s.subscribers {
		if s.Verified {
			c := *s
			subs = append(subs, &c)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Email < subs[j].Email })
	return subs, nil
}

func (r *SubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	s, ok := r.s.subscribers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, sub *domain.Subscriber) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *sub
	r.s.subscribers[sub.ID] = &c
	return nil
}

// =============================================================================
// WebhookRepository
// =============================================================================

// WebhookRepo implements storage.WebhookRepository in memory.
type WebhookRepo struct{ s *Storage }

// NewWebhookRepo creates an in-memory webhook repository.
func NewWebhookRepo(s *Storage) *WebhookRepo { return &WebhookRepo{s: s} }

func (r *WebhookRepo) GetActiveForAction(ctx context.Context, action string) ([]*domain.Webhook, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var hooks []*domain.Webhook
	for _, w := range r.s.webhooks {
		if w.Active && w.WantsEvent(action) {
			c := *w
			hooks = append(hooks, &c)
		}
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks, nil
}

func (r *WebhookRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Webhook, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var hooks []*domain.Webhook
	for _, id := range ids {
		if w, ok := r.s.webhooks[id]; ok {
			c := *w
			hooks = append(hooks, &c)
		}
	}
	return hooks, nil
}

func (r *WebhookRepo) RecordDelivery(
	ctx context.Context,
	webhookID string,
	status domain.WebhookStatus,
	errMsg string,
	at time.Time,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.webhooks[webhookID]
	if !ok {
		return storage.ErrNotFound
	}
	w.LastStatus = status
	w.LastError = errMsg
	t := at
	w.LastTriggeredAt = &t
	return nil
}

func (r *WebhookRepo) Create(ctx context.Context, wh *domain.Webhook) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *wh
	r.s.webhooks[wh.ID] = &c
	return nil
}

// Get returns a webhook by id (test helper).
func (r *WebhookRepo) Get(id string) *domain.Webhook {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if w, ok := r.s.webhooks[id]; ok {
		c := *w
		return &c
	}
	return nil
}

// =============================================================================
// MonitorRepository
// =============================================================================

// MonitorRepo implements storage.MonitorRepository in memory.
type MonitorRepo struct{ s *Storage }

// NewMonitorRepo creates an in-memory monitor repository.
func NewMonitorRepo(s *Storage) *MonitorRepo { return &MonitorRepo{s: s} }

func (r *MonitorRepo) GetDue(ctx context.Context, now time.Time) ([]*domain.GatewayMonitor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var due []*domain.GatewayMonitor
	for _, m := range r.s.monitors {
		if m.Due(now) {
			c := *m
			due = append(due, &c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FQDN < due[j].FQDN })
	return due, nil
}

func (r *MonitorRepo) GetAll(ctx context.Context) ([]*domain.GatewayMonitor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var all []*domain.GatewayMonitor
	for _, m := range r.s.monitors {
		c := *m
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FQDN < all[j].FQDN })
	return all, nil
}

func (r *MonitorRepo) RecordCheck(
	ctx context.Context,
	id string,
	status domain.MonitorStatus,
	consecutiveFailures int,
	checkedAt time.Time,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.monitors[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Status = status
	m.ConsecutiveFailures = consecutiveFailures
	t := checkedAt
	m.LastCheckAt = &t
	return nil
}

func (r *MonitorRepo) SetAlertSent(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.monitors[id]
	if !ok {
		return storage.ErrNotFound
	}
	t := at
	m.LastAlertSentAt = &t
	m.LastRecoverySentAt = nil
	return nil
}

func (r *MonitorRepo) SetRecoverySent(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.monitors[id]
	if !ok {
		return storage.ErrNotFound
	}
	t := at
	m.LastRecoverySentAt = &t
	m.LastAlertSentAt = nil
	return nil
}

func (r *MonitorRepo) Links(ctx context.Context, monitorID string) ([]*domain.MonitorWebhookLink, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	links := make([]*domain.MonitorWebhookLink, 0, len(r.s.links[monitorID]))
	for _, l := range r.s.links[monitorID] {
		c := *l
		links = append(links, &c)
	}
	return links, nil
}

func (r *MonitorRepo) Create(ctx context.Context, m *domain.GatewayMonitor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *m
	r.s.monitors[m.ID] = &c
	return nil
}

// AddLink attaches a webhook link to a monitor (test/config helper).
func (r *MonitorRepo) AddLink(link *domain.MonitorWebhookLink) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *link
	r.s.links[link.MonitorID] = append(r.s.links[link.MonitorID], &c)
}

// Get returns a monitor by id (test helper).
func (r *MonitorRepo) Get(id string) *domain.GatewayMonitor {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if m, ok := r.s.monitors[id]; ok {
		c := *m
		return &c
	}
	return nil
}

// =============================================================================
// HealthcheckRepository
// =============================================================================

// HealthcheckRepo implements storage.HealthcheckRepository in memory.
type HealthcheckRepo struct{ s *Storage }

// NewHealthcheckRepo creates an in-memory healthcheck repository.
func NewHealthcheckRepo(s *Storage) *HealthcheckRepo { return &HealthcheckRepo{s: s} }

func (r *HealthcheckRepo) Append(ctx context.Context, rec *domain.HealthcheckRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *rec
	r.s.healthchecks = append(r.s.healthchecks, &c)
	return nil
}

func (r *HealthcheckRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var kept []*domain.HealthcheckRecord
	var deleted int64
	for _, rec := range r.s.healthchecks {
		if rec.CheckedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.s.healthchecks = kept
	return deleted, nil
}

// Records returns all stored records (test helper).
func (r *HealthcheckRepo) Records() []*domain.HealthcheckRecord {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.HealthcheckRecord, len(r.s.healthchecks))
	copy(out, r.s.healthchecks)
	return out
}
