// Package serialize converts record collections to and from their stored
// document form and strips internal-only attributes from external views.
package serialize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrNotArray reports a document whose top-level value is not a JSON array.
var ErrNotArray = errors.New("document is not a JSON array")

// MarshalDocument encodes records as an indented JSON array. A nil slice
// encodes as an empty array.
func MarshalDocument[T any](records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// UnmarshalDocument decodes a stored document. Empty content and a bare
// null decode as an empty collection.
func UnmarshalDocument[T any](b []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	if !gjson.ParseBytes(trimmed).IsArray() {
		return nil, ErrNotArray
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
