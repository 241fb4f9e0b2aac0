package apijson

import "log/slog"

// Serializer is the codec surface generated API stubs depend on.
// *JSON is the implementation; tests may substitute their own.
type Serializer interface {
	// Serialize encodes a request model.
	Serialize(v any) (string, error)

	// Deserialize decodes a response body into v.
	// A *string target receives the raw body when it is not a JSON string.
	Deserialize(body string, v any) error
}

// Compile-time interface compliance checks
var (
	_ Serializer = (*JSON)(nil)
	_ Logger     = (*slog.Logger)(nil)
)
