// Package apijson is the JSON layer of a generated API client. It encodes
// models with json-iterator, adding wire formats for timestamps, dates and
// base64 binary fields.
package apijson

import (
	"fmt"
	"io"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	json "github.com/eznix86/apijson/jsoncompat"
)

// JSON serializes API models. Formats are fixed at construction, so a
// single value can be shared by every client goroutine.
type JSON struct {
	api      jsoniter.API
	adapters *typeAdapters
	logger   Logger
}

var (
	defaultOnce  sync.Once
	defaultCodec *JSON
)

// Default returns a process-wide codec built from NewDefaultOptions.
func Default() *JSON {
	defaultOnce.Do(func() {
		defaultCodec = New()
	})
	return defaultCodec
}

// New creates a codec. Options override NewDefaultOptions.
func New(opts ...Option) *JSON {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	api := jsoniter.Config{
		EscapeHTML:             o.EscapeHTML,
		SortMapKeys:            o.SortMapKeys,
		ValidateJsonRawMessage: true,
		DisallowUnknownFields:  o.DisallowUnknownFields,
	}.Froze()

	adapters := newTypeAdapters(o)
	api.RegisterExtension(adapters)

	return &JSON{
		api:      api,
		adapters: adapters,
		logger:   o.Logger,
	}
}

// DateFormat returns the format used for time.Time values.
func (j *JSON) DateFormat() TimeFormat { return j.adapters.date.format }

// SQLDateFormat returns the format used for SQLDate values.
func (j *JSON) SQLDateFormat() TimeFormat { return j.adapters.sqlDate.format }

// DateTimeFormat returns the format used for DateTime values.
func (j *JSON) DateTimeFormat() TimeFormat { return j.adapters.dateTime.format }

// LocalDateFormat returns the format used for LocalDate values.
func (j *JSON) LocalDateFormat() TimeFormat { return j.adapters.localDate.format }

// Serialize encodes v as a JSON string.
func (j *JSON) Serialize(v any) (string, error) {
	s, err := j.api.MarshalToString(v)
	if err != nil {
		return "", fmt.Errorf("serialize %T: %w", v, err)
	}
	return s, nil
}

// Deserialize decodes body into v, which must be a non-nil pointer.
// An empty body leaves v untouched. When v is a *string and body is not
// a JSON string, the raw body is stored instead of failing.
func (j *JSON) Deserialize(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	err := j.api.UnmarshalFromString(body, v)
	if err == nil {
		return nil
	}

	if s, ok := v.(*string); ok {
		j.logDebug("Returning raw body for string target",
			"reason", err.Error(),
			"valid_json", json.Valid([]byte(body)),
			"body_bytes", len(body),
		)
		*s = body
		return nil
	}

	return err
}

// Marshal encodes v.
func (j *JSON) Marshal(v any) ([]byte, error) {
	b, err := j.api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes data into v. Unlike Deserialize it never falls back to the raw text.
func (j *JSON) Unmarshal(data []byte, v any) error {
	return j.api.Unmarshal(data, v)
}

// Encode writes the encoding of v to w.
func (j *JSON) Encode(w io.Writer, v any) error {
	b, err := j.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode reads r to EOF and decodes it like Deserialize.
func (j *JSON) Decode(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return j.Deserialize(string(body), v)
}

func (j *JSON) logDebug(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Debug(msg, args...)
	}
}
