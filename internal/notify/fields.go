package notify

import (
	"fmt"
	"strings"

	"github.com/arnotify/notifier/internal/core/domain"
)

// FieldFunc extracts the ordered field list for one action.
type FieldFunc func(e *domain.Event) []Field

// fieldTable maps known actions to their extraction functions. Unknown
// actions fall back to genericFields. Adding an event type means adding
// one entry plus its function, keeping formatting a closed operation.
var fieldTable = map[string]FieldFunc{
	"transfer":      transferFields,
	"credit-notice": creditNoticeFields,
	"debit-notice":  debitNoticeFields,
	"buy-record":    buyRecordFields,
	"extend-lease":  extendLeaseFields,
	"upgrade-name":  buyRecordFields,
}

// EventFields returns the ordered label/value list for an event.
func EventFields(e *domain.Event) []Field {
	if fn, ok := fieldTable[e.Action]; ok {
		return fn(e)
	}
	return genericFields(e)
}

// EventTitle returns the human header for an event.
func EventTitle(e *domain.Event) string {
	return fmt.Sprintf("%s on %s", titleCase(e.Action), shortID(e.ProcessID))
}

func transferFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "Quantity", Value: e.Tag("Quantity")},
		{Label: "From", Value: shortID(e.From)},
		{Label: "To", Value: shortID(e.Target)},
	})
}

func creditNoticeFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "Quantity", Value: e.Tag("Quantity")},
		{Label: "Sender", Value: shortID(e.Tag("Sender"))},
		{Label: "Recipient", Value: shortID(e.Target)},
	})
}

func debitNoticeFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "Quantity", Value: e.Tag("Quantity")},
		{Label: "Recipient", Value: shortID(e.Tag("Recipient"))},
	})
}

func buyRecordFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "Name", Value: e.Tag("Name")},
		{Label: "Purchase-Type", Value: e.Tag("Purchase-Type")},
		{Label: "Buyer", Value: shortID(e.From)},
	})
}

func extendLeaseFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "Name", Value: e.Tag("Name")},
		{Label: "Years", Value: e.Tag("Years")},
	})
}

// genericFields covers actions without a dedicated extractor.
func genericFields(e *domain.Event) []Field {
	return withCommon(e, []Field{
		{Label: "From", Value: shortID(e.From)},
		{Label: "Target", Value: shortID(e.Target)},
	})
}

// withCommon appends the shared trailing fields and drops empty values.
func withCommon(e *domain.Event, fields []Field) []Field {
	fields = append(fields,
		Field{Label: "Message", Value: shortID(e.MessageID)},
		Field{Label: "Block", Value: fmt.Sprintf("%d", e.BlockHeight)},
	)
	out := fields[:0]
	for _, f := range fields {
		if f.Value != "" && f.Value != "0" {
			out = append(out, f)
		}
	}
	return out
}

// shortID abbreviates a 43-char Arweave id for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}

func titleCase(action string) string {
	parts := strings.Split(action, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
