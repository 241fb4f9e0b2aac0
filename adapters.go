package apijson

import (
	"encoding/base64"
	"io"
	"reflect"
	"time"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	sqlDateType   = reflect.TypeOf(SQLDate{})
	dateTimeType  = reflect.TypeOf(DateTime{})
	localDateType = reflect.TypeOf(LocalDate{})
	bytesType     = reflect.TypeOf([]byte(nil))
)

// typeAdapters plugs the temporal and binary codecs into a frozen
// json-iterator config. Pointers to the adapted types are encoded through
// OptionalEncoder, so a nil pointer encodes as null and null leaves the
// pointer nil.
type typeAdapters struct {
	jsoniter.DummyExtension

	date      *timeCodec
	sqlDate   *timeCodec
	dateTime  *timeCodec
	localDate *timeCodec
	binary    *binaryCodec
}

func newTypeAdapters(o *Options) *typeAdapters {
	return &typeAdapters{
		date: &timeCodec{
			name:   "Date",
			format: o.DateFormat,
			get:    func(ptr unsafe.Pointer) time.Time { return *(*time.Time)(ptr) },
			set:    func(ptr unsafe.Pointer, t time.Time) { *(*time.Time)(ptr) = t },
		},
		sqlDate: &timeCodec{
			name:   "SQLDate",
			format: o.SQLDateFormat,
			get:    func(ptr unsafe.Pointer) time.Time { return (*SQLDate)(ptr).Time },
			set:    func(ptr unsafe.Pointer, t time.Time) { *(*SQLDate)(ptr) = SQLDate{Time: t} },
		},
		dateTime: &timeCodec{
			name:   "DateTime",
			format: o.DateTimeFormat,
			get:    func(ptr unsafe.Pointer) time.Time { return (*DateTime)(ptr).Time },
			set:    func(ptr unsafe.Pointer, t time.Time) { *(*DateTime)(ptr) = DateTime{Time: t} },
		},
		localDate: &timeCodec{
			name:   "LocalDate",
			format: o.LocalDateFormat,
			get: func(ptr unsafe.Pointer) time.Time {
				return (*LocalDate)(ptr).In(time.UTC)
			},
			set:   func(ptr unsafe.Pointer, t time.Time) { *(*LocalDate)(ptr) = LocalDateOf(t) },
			clear: func(ptr unsafe.Pointer) { *(*LocalDate)(ptr) = LocalDate{} },
			zero: func(ptr unsafe.Pointer) bool {
				return (*LocalDate)(ptr).IsZero()
			},
			// LocalDate{} names no day, so it has no text form.
			nullWhenZero: true,
		},
		binary: &binaryCodec{encoding: o.Base64},
	}
}

func (a *typeAdapters) codecFor(typ reflect2.Type) interface {
	jsoniter.ValEncoder
	jsoniter.ValDecoder
} {
	switch typ.Type1() {
	case timeType:
		return a.date
	case sqlDateType:
		return a.sqlDate
	case dateTimeType:
		return a.dateTime
	case localDateType:
		return a.localDate
	case bytesType:
		return a.binary
	}
	return nil
}

func (a *typeAdapters) CreateEncoder(typ reflect2.Type) jsoniter.ValEncoder {
	if c := a.codecFor(typ); c != nil {
		return c
	}
	// *time.Time and *DateTime implement json.Marshaler, which json-iterator
	// would otherwise prefer over the element encoder.
	if typ.Kind() != reflect.Ptr {
		return nil
	}
	if c := a.codecFor(typ.(reflect2.PtrType).Elem()); c != nil {
		return &jsoniter.OptionalEncoder{ValueEncoder: c}
	}
	return nil
}

func (a *typeAdapters) CreateDecoder(typ reflect2.Type) jsoniter.ValDecoder {
	if c := a.codecFor(typ); c != nil {
		return c
	}
	return nil
}

// timeCodec encodes one temporal type through a TimeFormat.
type timeCodec struct {
	name   string
	format TimeFormat
	get    func(ptr unsafe.Pointer) time.Time
	set    func(ptr unsafe.Pointer, t time.Time)
	// clear resets the value on null. Defaults to set(ptr, time.Time{}).
	clear func(ptr unsafe.Pointer)
	// zero overrides the emptiness test when time.Time.IsZero does not apply.
	zero func(ptr unsafe.Pointer) bool
	// nullWhenZero writes null instead of formatting an empty value.
	nullWhenZero bool
}

func (c *timeCodec) IsEmpty(ptr unsafe.Pointer) bool {
	if c.zero != nil {
		return c.zero(ptr)
	}
	return c.get(ptr).IsZero()
}

func (c *timeCodec) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	if c.nullWhenZero && c.IsEmpty(ptr) {
		stream.WriteNil()
		return
	}
	stream.WriteString(c.format.Format(c.get(ptr)))
}

func (c *timeCodec) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		if c.clear != nil {
			c.clear(ptr)
		} else {
			c.set(ptr, time.Time{})
		}
	case jsoniter.StringValue:
		s := iter.ReadString()
		t, err := c.format.Parse(s)
		if err != nil {
			reportParseError(iter, &ParseError{Adapter: c.name, Value: s, Err: err})
			return
		}
		c.set(ptr, t)
	default:
		raw := iter.SkipAndReturnBytes()
		reportParseError(iter, &ParseError{Adapter: c.name, Value: string(raw)})
	}
}

// binaryCodec encodes []byte as base64 text.
type binaryCodec struct {
	encoding *base64.Encoding
}

func (c *binaryCodec) IsEmpty(ptr unsafe.Pointer) bool {
	return len(*(*[]byte)(ptr)) == 0
}

func (c *binaryCodec) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	b := *(*[]byte)(ptr)
	if b == nil {
		stream.WriteNil()
		return
	}
	stream.WriteString(c.encoding.EncodeToString(b))
}

func (c *binaryCodec) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		*(*[]byte)(ptr) = nil
	case jsoniter.StringValue:
		s := iter.ReadString()
		b, err := c.encoding.DecodeString(s)
		if err != nil {
			reportParseError(iter, &ParseError{Adapter: "Binary", Value: s, Err: err})
			return
		}
		*(*[]byte)(ptr) = b
	default:
		raw := iter.SkipAndReturnBytes()
		reportParseError(iter, &ParseError{Adapter: "Binary", Value: string(raw)})
	}
}

// reportParseError keeps the first error, like iter.ReportError, but
// stores err itself so a top-level decode can be inspected with errors.As.
func reportParseError(iter *jsoniter.Iterator, err *ParseError) {
	if iter.Error == nil || iter.Error == io.EOF {
		iter.Error = err
	}
}
