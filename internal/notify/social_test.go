package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildPost_FitsWithinLimit(t *testing.T) {
	fields := []Field{
		{Label: "Quantity", Value: "1000"},
		{Label: "From", Value: "abc123...def4"},
	}
	post := BuildPost("Transfer on proc-1", fields, 280)

	if strings.Contains(post, "…") {
		t.Errorf("Expected no ellipsis when everything fits: %q", post)
	}
	if !strings.Contains(post, "Quantity: 1000") {
		t.Errorf("Expected field line in post: %q", post)
	}
	if len([]rune(post)) > 280 {
		t.Errorf("Post exceeds limit: %d runes", len([]rune(post)))
	}
}

func TestBuildPost_TruncatesFields(t *testing.T) {
	long := strings.Repeat("x", 200)
	fields := []Field{
		{Label: "First", Value: long},
		{Label: "Second", Value: long},
		{Label: "Third", Value: "tail"},
	}
	post := BuildPost("Header stays", fields, 280)

	if !strings.HasPrefix(post, "Header stays") {
		t.Errorf("Header must survive truncation: %q", post)
	}
	if !strings.HasSuffix(post, "…") {
		t.Errorf("Expected ellipsis marker after dropping fields: %q", post)
	}
	if len([]rune(post)) > 280 {
		t.Errorf("Post exceeds limit: %d runes", len([]rune(post)))
	}
	if strings.Contains(post, "Third") {
		t.Errorf("Dropped field leaked into post: %q", post)
	}
}

func TestBuildPost_HeaderNeverTruncated(t *testing.T) {
	header := strings.Repeat("h", 300)
	post := BuildPost(header, []Field{{Label: "A", Value: "1"}}, 280)

	if !strings.HasPrefix(post, header) {
		t.Error("Header must be kept intact even when it exceeds the limit")
	}
	if strings.Contains(post, "A: 1") {
		t.Errorf("No field should fit after an oversized header: %q", post)
	}
}

func TestBuildPost_CountsRunesNotBytes(t *testing.T) {
	// Multibyte value: 100 runes, 300 bytes.
	value := strings.Repeat("日", 100)
	post := BuildPost("T", []Field{{Label: "N", Value: value}}, 280)

	if !strings.Contains(post, value) {
		t.Errorf("Expected 100-rune value to fit the budget: %d runes used", len([]rune(post)))
	}
}

func TestSocialChannel_Send(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSocialChannel(SocialConfig{APIURL: srv.URL, BearerToken: "token-123"})
	err := c.Send(context.Background(), &Notification{
		Title:  "Transfer on proc-1",
		Fields: []Field{{Label: "Quantity", Value: "5"}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAuth != "Bearer token-123" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if !strings.Contains(gotBody["text"], "Quantity: 5") {
		t.Errorf("Unexpected post text: %q", gotBody["text"])
	}
}

func TestSocialChannel_DisabledWithoutToken(t *testing.T) {
	c := NewSocialChannel(SocialConfig{APIURL: "https://example.com"})
	if c.Enabled() {
		t.Error("Expected channel disabled without a bearer token")
	}
}
