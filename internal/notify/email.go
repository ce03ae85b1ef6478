package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// EmailConfig holds the transactional email settings.
type EmailConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
}

// EmailChannel sends batched notification emails via Resend.
//
// Email is the pipeline's at-least-once channel: the dispatcher marks an
// event processed only after this channel completes.
type EmailChannel struct {
	client *resend.Client
	from   string
}

// NewEmailChannel creates the email channel. A missing API key disables
// the channel without affecting others.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	if cfg.APIKey == "" {
		slog.Warn("Email API key not set, email channel disabled")
		return &EmailChannel{from: cfg.From}
	}
	return &EmailChannel{
		client: resend.NewClient(cfg.APIKey),
		from:   cfg.From,
	}
}

// Name returns the channel name.
func (c *EmailChannel) Name() string { return "email" }

// Enabled reports whether credentials are configured.
func (c *EmailChannel) Enabled() bool { return c.client != nil }

// Send delivers one email batching all interested recipients.
func (c *EmailChannel) Send(ctx context.Context, n *Notification) error {
	if len(n.EmailRecipients) == 0 {
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      n.EmailRecipients,
		Subject: n.Subject,
		Html:    renderHTML(n),
	}

	result, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}

	slog.Info("Email sent",
		"email_id", result.Id,
		"recipients", len(n.EmailRecipients),
		"subject", n.Subject,
	)
	return nil
}

// renderHTML builds a minimal body from the title and ordered fields.
// Rich templating lives in the external notification-content service.
func renderHTML(n *Notification) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</h2><table>")
	for _, f := range n.Fields {
		b.WriteString("<tr><td><strong>")
		b.WriteString(html.EscapeString(f.Label))
		b.WriteString("</strong></td><td>")
		b.WriteString(html.EscapeString(f.Value))
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
