// Package xjson is the single JSON codec import site. It uses goccy/go-json, whose Marshal
// writes map keys in sorted order; fingerprints depend on that.
package xjson

import (
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

// RawMessage stays interchangeable with encoding/json.
type RawMessage = stdjson.RawMessage

func Marshal(v any) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return gjson.Unmarshal(data, v)
}

// Normalize round-trips v through JSON into generic maps, slices and scalars so that struct
// field order no longer matters to Marshal.
func Normalize(v any) (any, error) {
	data, err := gjson.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out any
	if err := gjson.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}
