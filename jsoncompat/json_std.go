//go:build !go_json

package json

import (
	"bytes"
	stdjson "encoding/json"
)

// encoding/json backend (default)

type RawMessage = stdjson.RawMessage

func Unmarshal(data []byte, v any) error {
	return stdjson.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return stdjson.Valid(data)
}

func Compact(dst *bytes.Buffer, src []byte) error {
	return stdjson.Compact(dst, src)
}
