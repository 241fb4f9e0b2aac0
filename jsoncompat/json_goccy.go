//go:build go_json

package json

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// goccy/go-json backend, enabled with the go_json build tag

type RawMessage = gojson.RawMessage

func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

func Compact(dst *bytes.Buffer, src []byte) error {
	return gojson.Compact(dst, src)
}
