package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/storage"
)

// webhookTimeout bounds each individual delivery.
const webhookTimeout = 30 * time.Second

// WebhookChannel delivers notifications to per-subscriber webhooks.
//
// Deliveries are asynchronous and best-effort: Send spawns one supervised
// goroutine per webhook row and returns without waiting. The outcome of
// every attempt is recorded on the webhook row regardless of how the rest
// of the dispatch fared.
type WebhookChannel struct {
	httpClient *http.Client
	repo       storage.WebhookRepository
	log        *slog.Logger
	wg         sync.WaitGroup
}

// NewWebhookChannel creates the webhook channel.
func NewWebhookChannel(repo storage.WebhookRepository) *WebhookChannel {
	return &WebhookChannel{
		httpClient: &http.Client{Timeout: webhookTimeout},
		repo:       repo,
		log:        slog.Default().With("channel", "webhook"),
	}
}

// Name returns the channel name.
func (c *WebhookChannel) Name() string { return "webhook" }

// Enabled reports whether the channel can run. Webhooks need no global
// credentials; rows carry their own configuration.
func (c *WebhookChannel) Enabled() bool { return true }

// Send spawns one supervised delivery per webhook row.
func (c *WebhookChannel) Send(ctx context.Context, n *Notification) error {
	for _, wh := range n.Webhooks {
		c.wg.Add(1)
		go func(wh *domain.Webhook) {
			defer c.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("Webhook delivery panicked", "webhook", wh.ID, "panic", r)
				}
			}()
			c.deliver(wh, n)
		}(wh)
	}
	return nil
}

// Wait blocks until all in-flight deliveries complete (shutdown, tests).
func (c *WebhookChannel) Wait() {
	c.wg.Wait()
}

func (c *WebhookChannel) deliver(wh *domain.Webhook, n *Notification) {
	// Deliveries outlive the triggering dispatch; each gets its own
	// bounded context.
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	err := c.post(ctx, wh, n)

	status := domain.WebhookStatusSuccess
	errMsg := ""
	if err != nil {
		status = domain.WebhookStatusFailed
		errMsg = err.Error()
		c.log.Warn("Webhook delivery failed", "webhook", wh.ID, "url", wh.URL, "error", err)
	} else {
		c.log.Debug("Webhook delivered", "webhook", wh.ID)
	}

	if recErr := c.repo.RecordDelivery(ctx, wh.ID, status, errMsg, time.Now().UTC()); recErr != nil {
		c.log.Error("Failed to record webhook delivery", "webhook", wh.ID, "error", recErr)
	}
}

func (c *WebhookChannel) post(ctx context.Context, wh *domain.Webhook, n *Notification) error {
	payload, err := buildWebhookPayload(wh.Type, n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if wh.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildWebhookPayload renders the notification for the row's type. All
// three shapes are projections of the same ordered field list.
func buildWebhookPayload(typ domain.WebhookType, n *Notification) ([]byte, error) {
	switch typ {
	case domain.WebhookTypeDiscord:
		return json.Marshal(map[string]string{"content": markdownContent(n)})

	case domain.WebhookTypeSlack:
		return json.Marshal(slackPayload(n))

	default: // custom
		body := map[string]any{
			"type":   string(n.Kind),
			"title":  n.Title,
			"fields": fieldList(n.Fields),
		}
		if e := n.Event; e != nil {
			body["process_id"] = e.ProcessID
			body["nonce"] = e.Nonce
			body["action"] = e.Action
			body["message_id"] = e.MessageID
			body["target"] = e.Target
			body["from"] = e.From
			body["block_height"] = e.BlockHeight
		}
		return json.Marshal(body)
	}
}

func fieldList(fields []Field) []map[string]string {
	out := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]string{"label": f.Label, "value": f.Value})
	}
	return out
}

func markdownContent(n *Notification) string {
	var b bytes.Buffer
	b.WriteString("**")
	b.WriteString(n.Title)
	b.WriteString("**")
	for _, f := range n.Fields {
		b.WriteString("\n**")
		b.WriteString(f.Label)
		b.WriteString(":** ")
		b.WriteString(f.Value)
	}
	return b.String()
}

func slackPayload(n *Notification) map[string]any {
	sectionFields := make([]map[string]string, 0, len(n.Fields))
	for _, f := range n.Fields {
		sectionFields = append(sectionFields, map[string]string{
			"type": "mrkdwn",
			"text": "*" + f.Label + ":*\n" + f.Value,
		})
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]string{"type": "plain_text", "text": n.Title},
		},
	}
	if len(sectionFields) > 0 {
		blocks = append(blocks, map[string]any{
			"type":   "section",
			"fields": sectionFields,
		})
	}
	return map[string]any{"blocks": blocks}
}
