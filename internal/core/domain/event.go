package domain

import "time"

// Tag is a name/value pair attached to an AO message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event represents a normalized AO process event.
//
// Nonce is the per-process sequence number taken from the Reference tag;
// for a fixed ProcessID accepted events have strictly increasing nonces.
type Event struct {
	ProcessID   string
	Nonce       uint64
	Action      string
	BlockHeight uint64
	MessageID   string
	Target      string
	From        string
	Tags        []Tag
	Data        string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Tag returns the value of the first tag with the given name, or "".
func (e *Event) Tag(name string) string {
	for _, t := range e.Tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}
