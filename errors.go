package apijson

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/eznix86/apijson/jsoncompat"
)

var (
	ErrNotObject            = errors.New("apijson: discriminated value is not a JSON object")
	ErrMissingDiscriminator = errors.New("apijson: missing discriminator field")
	ErrUnknownDiscriminator = errors.New("apijson: cannot determine model type")
)

// ParseError reports a value one of the type adapters could not decode.
type ParseError struct {
	Adapter string // Date, SQLDate, DateTime, LocalDate or Binary
	Value   string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("apijson: cannot parse %q as %s", e.Value, e.Adapter)
	}
	return fmt.Sprintf("apijson: cannot parse %q as %s: %v", e.Value, e.Adapter, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError is returned by Client.Invoke for non-2xx responses.
type APIError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	codec Serializer
}

func (e *APIError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("api request failed: %s", e.Status)
	}
	return fmt.Sprintf("api request failed: %s - %s", e.Status, compactBody(e.Body))
}

// compactBody puts a JSON body on one line. Other bodies are only trimmed.
func compactBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return strings.TrimSpace(string(body))
	}
	return buf.String()
}

// Decode unmarshals the error payload, typically a status object, into v.
func (e *APIError) Decode(v any) error {
	var codec Serializer = Default()
	if e.codec != nil {
		codec = e.codec
	}
	return codec.Deserialize(string(e.Body), v)
}
