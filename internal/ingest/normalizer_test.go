package ingest

import (
	"errors"
	"testing"

	"github.com/arnotify/notifier/internal/infra/arweave"
)

const testProcess = "proc-1111111111111111111111111111111111111"

func TestNormalize_Basic(t *testing.T) {
	tags := []arweave.Tag{
		{Name: "Action", Value: "Transfer"},
		{Name: "Reference", Value: "42"},
		{Name: "Recipient", Value: "wallet-recipient"},
		{Name: "From-Process", Value: "proc-sender"},
		{Name: "Quantity", Value: "1000"},
	}

	e, err := Normalize(testProcess, "msg-1", "tx-recipient", 1500000, tags, `{"ok":true}`)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.Action != "transfer" {
		t.Errorf("Expected action transfer, got %s", e.Action)
	}
	if e.Nonce != 42 {
		t.Errorf("Expected nonce 42, got %d", e.Nonce)
	}
	if e.Target != "wallet-recipient" {
		t.Errorf("Expected target wallet-recipient, got %s", e.Target)
	}
	if e.ProcessID != "proc-sender" {
		t.Errorf("Expected process proc-sender, got %s", e.ProcessID)
	}
	if e.From != "proc-sender" {
		t.Errorf("Expected from proc-sender, got %s", e.From)
	}
	if e.BlockHeight != 1500000 {
		t.Errorf("Expected block height 1500000, got %d", e.BlockHeight)
	}
	if e.Data != `{"ok":true}` {
		t.Errorf("Unexpected data: %s", e.Data)
	}
}

func TestNormalize_LegacyTags(t *testing.T) {
	tags := []arweave.Tag{
		{Name: "Action", Value: "Credit-Notice"},
		{Name: "Ref_", Value: "7"},
		{Name: "Target", Value: "legacy-target"},
	}

	e, err := Normalize(testProcess, "msg-2", "", 100, tags, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if e.Nonce != 7 {
		t.Errorf("Expected nonce 7 from Ref_ tag, got %d", e.Nonce)
	}
	if e.Target != "legacy-target" {
		t.Errorf("Expected target from Target tag, got %s", e.Target)
	}
	if e.ProcessID != testProcess {
		t.Errorf("Expected default process, got %s", e.ProcessID)
	}
}

func TestNormalize_ReferenceWinsOverLegacy(t *testing.T) {
	tags := []arweave.Tag{
		{Name: "Action", Value: "transfer"},
		{Name: "Reference", Value: "10"},
		{Name: "Ref_", Value: "99"},
	}

	e, err := Normalize(testProcess, "msg-3", "", 100, tags, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.Nonce != 10 {
		t.Errorf("Expected Reference to win, got nonce %d", e.Nonce)
	}
}

func TestNormalize_RecipientFallback(t *testing.T) {
	tags := []arweave.Tag{
		{Name: "Action", Value: "transfer"},
		{Name: "Reference", Value: "1"},
	}

	e, err := Normalize(testProcess, "msg-4", "tx-level-recipient", 100, tags, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.Target != "tx-level-recipient" {
		t.Errorf("Expected transaction recipient fallback, got %s", e.Target)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := []struct {
		name string
		tags []arweave.Tag
	}{
		{
			name: "missing action",
			tags: []arweave.Tag{{Name: "Reference", Value: "1"}},
		},
		{
			name: "missing reference",
			tags: []arweave.Tag{{Name: "Action", Value: "transfer"}},
		},
		{
			name: "non-numeric reference",
			tags: []arweave.Tag{
				{Name: "Action", Value: "transfer"},
				{Name: "Reference", Value: "abc"},
			},
		},
		{
			name: "blank action",
			tags: []arweave.Tag{
				{Name: "Action", Value: "   "},
				{Name: "Reference", Value: "1"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(testProcess, "msg", "", 100, tc.tags, "")
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestNormalize_DuplicateTagsFirstWins(t *testing.T) {
	tags := []arweave.Tag{
		{Name: "Action", Value: "transfer"},
		{Name: "Action", Value: "burn"},
		{Name: "Reference", Value: "5"},
	}

	e, err := Normalize(testProcess, "msg-5", "", 100, tags, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.Action != "transfer" {
		t.Errorf("Expected first Action tag to win, got %s", e.Action)
	}
	if len(e.Tags) != 3 {
		t.Errorf("Expected all raw tags preserved, got %d", len(e.Tags))
	}
}
