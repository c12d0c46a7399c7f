package models

import (
	"encoding/json"
	"time"
)

// Timestamp is a provider time that decodes leniently. null, "" and
// unparseable values leave it zero; Raw keeps the rejected text.
type Timestamp struct {
	time.Time
	Raw string
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	if string(b) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Raw = string(b)
		return nil
	}
	if s == "" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Raw = s
		return nil
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return t.Time.MarshalJSON()
}

// Invalid reports whether a value was present but could not be parsed
func (t Timestamp) Invalid() bool {
	return t.Raw != ""
}

// Ptr returns the time, or nil when unset
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
