package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arnotify/notifier/internal/core/domain"
	"github.com/arnotify/notifier/internal/infra/arweave"
)

var (
	// ErrMalformedEvent is returned when a message lacks the action or
	// reference tag. Such messages are malformed upstream and dropped.
	ErrMalformedEvent = errors.New("malformed event")
)

// Tag names used by AO messages. Reference and Recipient have legacy
// spellings that older processes still emit.
const (
	tagAction       = "Action"
	tagReference    = "Reference"
	tagReferenceOld = "Ref_"
	tagRecipient    = "Recipient"
	tagRecipientOld = "Target"
	tagFromProcess  = "From-Process"
	tagFrom         = "From"
)

// Normalize extracts a canonical event from a transaction's tag set and
// raw message body. defaultProcess is used when the message carries no
// originating-process tag.
func Normalize(
	defaultProcess string,
	msgID string,
	txRecipient string,
	blockHeight uint64,
	tags []arweave.Tag,
	data string,
) (*domain.Event, error) {
	byName := make(map[string]string, len(tags))
	domainTags := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := byName[t.Name]; !ok {
			byName[t.Name] = t.Value
		}
		domainTags = append(domainTags, domain.Tag{Name: t.Name, Value: t.Value})
	}

	action := strings.ToLower(strings.TrimSpace(byName[tagAction]))
	if action == "" {
		return nil, fmt.Errorf("%w: missing %s tag", ErrMalformedEvent, tagAction)
	}

	ref := byName[tagReference]
	if ref == "" {
		ref = byName[tagReferenceOld]
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: missing reference tag", ErrMalformedEvent)
	}
	nonce, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid reference %q", ErrMalformedEvent, ref)
	}

	target := byName[tagRecipient]
	if target == "" {
		target = byName[tagRecipientOld]
	}
	if target == "" {
		target = txRecipient
	}

	from := byName[tagFromProcess]
	if from == "" {
		from = byName[tagFrom]
	}

	processID := byName[tagFromProcess]
	if processID == "" {
		processID = defaultProcess
	}

	return &domain.Event{
		ProcessID:   processID,
		Nonce:       nonce,
		Action:      action,
		BlockHeight: blockHeight,
		MessageID:   msgID,
		Target:      target,
		From:        from,
		Tags:        domainTags,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
