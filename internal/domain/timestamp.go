package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a UTC instant stored as an ISO-8601 string. Documents written
// by older deployments carry naive timestamps without a zone; those are read
// as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// NewTimestamp converts t to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		*t = NewTimestamp(parsed)
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			*t = Timestamp{Time: parsed}
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", raw)
}
