package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// Timestamp decodes the loosely typed created_at values the backend emits:
// null or "", RFC 3339 and space-separated date-times, epoch milliseconds, and
// serialized Firestore timestamps ({"_seconds":..,"_nanoseconds":..}).
//
// Values that match no known form decode to the zero time and are kept in
// Raw so they can still be shown. Decoding never fails.
type Timestamp struct {
	time.Time
	Raw string
}

type firestoreTimestamp struct {
	Seconds     *int64 `json:"_seconds"`
	Nanoseconds int64  `json:"_nanoseconds"`

	// Some serializers drop the leading underscore.
	PlainSeconds     *int64 `json:"seconds"`
	PlainNanoseconds int64  `json:"nanoseconds"`
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.parseString(s)
		return nil
	case '{':
		var ft firestoreTimestamp
		err := json.Unmarshal(data, &ft)
		switch {
		case err != nil:
			t.Raw = string(data)
		case ft.Seconds != nil:
			t.Time = time.Unix(*ft.Seconds, ft.Nanoseconds).UTC()
		case ft.PlainSeconds != nil:
			t.Time = time.Unix(*ft.PlainSeconds, ft.PlainNanoseconds).UTC()
		default:
			t.Raw = string(data)
		}
		return nil
	default:
		var ms json.Number
		if err := json.Unmarshal(data, &ms); err != nil {
			t.Raw = string(data)
			return nil
		}
		n, err := ms.Int64()
		if err != nil {
			t.Raw = ms.String()
			return nil
		}
		t.Time = time.UnixMilli(n).UTC()
		return nil
	}
}

func (t *Timestamp) parseString(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return
		}
	}
	t.Raw = s
}

// MarshalJSON writes RFC 3339, the unparsed text, or "" when empty.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Display formats the time with layout in UTC, falls back to the unparsed
// text, and is empty when nothing was set.
func (t Timestamp) Display(layout string) string {
	if t.Time.IsZero() {
		return t.Raw
	}
	return t.Time.UTC().Format(layout)
}
