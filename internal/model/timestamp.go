package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Timestamp is a creation instant as the backend sends it: either an ISO-8601
// string or a structured {seconds, nanoseconds} object.
type Timestamp struct {
	ISO         string
	Seconds     int64
	Nanoseconds int64
	Structured  bool
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimestampFromTime builds an ISO timestamp with millisecond precision.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{ISO: t.UTC().Format("2006-01-02T15:04:05.000Z07:00")}
}

// IsZero reports whether the backend sent nothing usable.
func (t Timestamp) IsZero() bool {
	return !t.Structured && t.ISO == ""
}

// Millis resolves the timestamp to milliseconds since epoch.
// Structured values use seconds only; absent or unparseable values resolve to 0.
func (t Timestamp) Millis() int64 {
	if t.Structured {
		return t.Seconds * 1000
	}
	s := strings.TrimSpace(t.ISO)
	if s == "" {
		return 0
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UnixMilli()
		}
	}
	return 0
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	if !gjson.ValidBytes(b) {
		return nil
	}

	r := gjson.ParseBytes(b)
	switch {
	case r.Type == gjson.String:
		t.ISO = r.String()
	case r.IsObject():
		sec := r.Get("seconds")
		if !sec.Exists() {
			sec = r.Get("_seconds")
		}
		if !sec.Exists() {
			return nil
		}
		nanos := r.Get("nanoseconds")
		if !nanos.Exists() {
			nanos = r.Get("_nanoseconds")
		}
		t.Seconds = sec.Int()
		t.Nanoseconds = nanos.Int()
		t.Structured = true
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case t.Structured:
		return json.Marshal(struct {
			Seconds     int64 `json:"seconds"`
			Nanoseconds int64 `json:"nanoseconds"`
		}{t.Seconds, t.Nanoseconds})
	case t.ISO != "":
		return json.Marshal(t.ISO)
	default:
		return []byte("null"), nil
	}
}
