package backend

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// decodeList accepts a bare array or {"data": [...]}, nothing else.
func decodeList(body []byte, out any) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid json", ErrUnexpectedShape)
	}

	r := gjson.ParseBytes(body)
	raw := ""
	switch {
	case r.IsArray():
		raw = r.Raw
	case r.IsObject() && r.Get("data").IsArray():
		raw = r.Get("data").Raw
	default:
		return fmt.Errorf("%w: expected array or {data: array}", ErrUnexpectedShape)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return nil
}

// decodeObject accepts a bare object or {"data": {...}}.
func decodeObject(body []byte, out any) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid json", ErrUnexpectedShape)
	}

	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return fmt.Errorf("%w: expected object", ErrUnexpectedShape)
	}

	raw := r.Raw
	if d := r.Get("data"); d.IsObject() {
		raw = d.Raw
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return nil
}
