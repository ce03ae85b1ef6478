package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
)

// MatchResult is the set of recipients interested in one event.
type MatchResult struct {
	EmailRecipients []string
	Webhooks        []*domain.Webhook
}

// Matcher resolves interested recipients for (process, action, target).
type Matcher struct {
	subscribers storage.SubscriberRepository
	webhooks    storage.WebhookRepository
}

// NewMatcher creates a matcher over the subscriber and webhook stores.
func NewMatcher(subscribers storage.SubscriberRepository, webhooks storage.WebhookRepository) *Matcher {
	return &Matcher{subscribers: subscribers, webhooks: webhooks}
}

// Match returns verified email recipients whose filter is empty or
// textually contains the target (substring matching, not exact address
// comparison), plus active webhooks subscribed to the action.
func (m *Matcher) Match(ctx context.Context, processID, action, target string) (*MatchResult, error) {
	subs, err := m.subscribers.GetVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers: %w", err)
	}

	var emails []string
	for _, s := range subs {
		if s.ProcessFilter == "" || (target != "" && strings.Contains(s.ProcessFilter, target)) {
			emails = append(emails, s.Email)
		}
	}

	hooks, err := m.webhooks.GetActiveForAction(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}

	return &MatchResult{EmailRecipients: emails, Webhooks: hooks}, nil
}
