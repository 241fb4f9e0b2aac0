package apijson

import (
	"encoding/base64"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options contains the configuration of a codec. It is read once by New.
type Options struct {
	DateFormat      TimeFormat // time.Time fields
	SQLDateFormat   TimeFormat // SQLDate fields
	DateTimeFormat  TimeFormat // DateTime fields
	LocalDateFormat TimeFormat // LocalDate fields

	// Encoding for []byte fields.
	Base64 *base64.Encoding

	DisallowUnknownFields bool
	SortMapKeys           bool
	EscapeHTML            bool

	Logger Logger // Optional logger (nil = no logging)
}

// Option is a function to configure Options.
type Option func(*Options)

// NewDefaultOptions returns the configuration used by Default.
func NewDefaultOptions() *Options {
	return &Options{
		DateFormat:      BasicDateTime,
		SQLDateFormat:   DateOnly,
		DateTimeFormat:  ISODateTime,
		LocalDateFormat: DateOnly,
		Base64:          base64.StdEncoding,
		EscapeHTML:      true,
	}
}

// WithDateFormat sets the format for time.Time fields. nil keeps the default.
func WithDateFormat(f TimeFormat) Option {
	return func(o *Options) {
		if f != nil {
			o.DateFormat = f
		}
	}
}

// WithSQLDateFormat sets the format for SQLDate fields. nil keeps the default.
func WithSQLDateFormat(f TimeFormat) Option {
	return func(o *Options) {
		if f != nil {
			o.SQLDateFormat = f
		}
	}
}

// WithDateTimeFormat sets the format for DateTime fields. nil keeps the default.
func WithDateTimeFormat(f TimeFormat) Option {
	return func(o *Options) {
		if f != nil {
			o.DateTimeFormat = f
		}
	}
}

// WithLocalDateFormat sets the format for LocalDate fields. nil keeps the default.
func WithLocalDateFormat(f TimeFormat) Option {
	return func(o *Options) {
		if f != nil {
			o.LocalDateFormat = f
		}
	}
}

// WithBase64Encoding sets the alphabet used for []byte fields.
func WithBase64Encoding(enc *base64.Encoding) Option {
	return func(o *Options) {
		if enc != nil {
			o.Base64 = enc
		}
	}
}

// WithDisallowUnknownFields makes decoding fail on object keys that match no struct field.
func WithDisallowUnknownFields(disallow bool) Option {
	return func(o *Options) {
		o.DisallowUnknownFields = disallow
	}
}

// WithSortMapKeys writes map keys in sorted order.
func WithSortMapKeys(sort bool) Option {
	return func(o *Options) {
		o.SortMapKeys = sort
	}
}

// WithEscapeHTML escapes <, > and & inside strings. On by default.
func WithEscapeHTML(escape bool) Option {
	return func(o *Options) {
		o.EscapeHTML = escape
	}
}

// WithLogger sets the logger used to report string fallbacks.
func WithLogger(logger Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
