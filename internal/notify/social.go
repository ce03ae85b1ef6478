package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// postCharLimit is the social platform's post length budget.
const postCharLimit = 280

// SocialConfig holds the social posting settings.
type SocialConfig struct {
	APIURL      string `yaml:"api_url"`
	BearerToken string `yaml:"bearer_token"`
}

// SocialChannel posts a condensed rendering of each notification.
type SocialChannel struct {
	cfg        SocialConfig
	httpClient *http.Client
}

// NewSocialChannel creates the social channel. A missing bearer token
// disables the channel without affecting others.
func NewSocialChannel(cfg SocialConfig) *SocialChannel {
	if cfg.BearerToken == "" {
		slog.Warn("Social bearer token not set, social channel disabled")
	}
	return &SocialChannel{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the channel name.
func (c *SocialChannel) Name() string { return "social" }

// Enabled reports whether credentials are configured.
func (c *SocialChannel) Enabled() bool { return c.cfg.BearerToken != "" }

// Send posts the notification.
func (c *SocialChannel) Send(ctx context.Context, n *Notification) error {
	content := BuildPost(n.Title, n.Fields, postCharLimit)

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post returned status %d", resp.StatusCode)
	}
	return nil
}

// BuildPost renders the header plus as many fields as fit the rune
// budget. The header is never truncated; trailing fields are dropped and
// an ellipsis marker appended when anything was cut.
func BuildPost(title string, fields []Field, limit int) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, "\n"+f.Label+": "+f.Value)
	}

	content := title
	used := len([]rune(title))
	kept := 0
	for _, line := range lines {
		n := len([]rune(line))
		remaining := limit - used - n
		if kept < len(lines)-1 {
			// Reserve one rune for the ellipsis in case later fields drop.
			remaining--
		}
		if remaining < 0 {
			break
		}
		content += line
		used += n
		kept++
	}

	if kept < len(lines) {
		content += "…"
	}
	return content
}
