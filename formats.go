package apijson

import (
	"fmt"
	"strings"
	"time"
)

// TimeFormat converts instants to and from their wire representation.
type TimeFormat interface {
	Format(t time.Time) string
	Parse(s string) (time.Time, error)
}

// Layout is a TimeFormat backed by a Go reference layout.
// If Location is set, values are converted to it before formatting and
// parsed in it when the text carries no zone.
type Layout struct {
	Layout   string
	Location *time.Location
}

// Format renders t with l.Layout.
func (l Layout) Format(t time.Time) string {
	if l.Location != nil {
		t = t.In(l.Location)
	}
	return t.Format(l.Layout)
}

// Parse reads s with l.Layout.
func (l Layout) Parse(s string) (time.Time, error) {
	if l.Location != nil {
		return time.ParseInLocation(l.Layout, s, l.Location)
	}
	return time.Parse(l.Layout, s)
}

const (
	basicDateTime = "20060102T150405.000Z0700"
	basicParse    = "20060102T150405Z0700"
	isoDateTime   = "2006-01-02T15:04:05.000Z07:00"
	rfc3339Micro  = "2006-01-02T15:04:05.000000Z07:00"
	// offset without colon, e.g. +0530
	rfc3339Compact = "2006-01-02T15:04:05Z0700"
	// no offset, read as UTC
	isoLocalDateTime = "2006-01-02T15:04:05"
)

var (
	// BasicDateTime writes yyyyMMdd'T'HHmmss.SSSZ in UTC. It reads the
	// basic form with any fraction and also accepts RFC 3339 timestamps.
	BasicDateTime TimeFormat = basicDateTimeFormat{}

	// ISODateTime writes millisecond precision in the value's own offset.
	// It reads RFC 3339 with any fraction, compact or missing offsets, and
	// a bare date.
	ISODateTime TimeFormat = isoDateTimeFormat{}

	// RFC3339Micro writes UTC with exactly six fractional digits, the form
	// used for MicroTime fields. A trailing +0000 is read as Z.
	RFC3339Micro TimeFormat = rfc3339MicroFormat{}

	// DateOnly reads and writes yyyy-MM-dd.
	DateOnly TimeFormat = Layout{Layout: time.DateOnly}
)

type basicDateTimeFormat struct{}

func (basicDateTimeFormat) Format(t time.Time) string {
	return t.UTC().Format(basicDateTime)
}

func (basicDateTimeFormat) Parse(s string) (time.Time, error) {
	return parseFirst(s, basicParse, time.RFC3339Nano, rfc3339Compact)
}

type isoDateTimeFormat struct{}

func (isoDateTimeFormat) Format(t time.Time) string {
	return t.Format(isoDateTime)
}

func (isoDateTimeFormat) Parse(s string) (time.Time, error) {
	return parseFirst(s, time.RFC3339Nano, rfc3339Compact, isoLocalDateTime, time.DateOnly)
}

type rfc3339MicroFormat struct{}

func (rfc3339MicroFormat) Format(t time.Time) string {
	return t.UTC().Format(rfc3339Micro)
}

func (rfc3339MicroFormat) Parse(s string) (time.Time, error) {
	if strings.HasSuffix(s, "+0000") {
		s = strings.TrimSuffix(s, "+0000") + "Z"
	}
	return parseFirst(s, time.RFC3339Nano, rfc3339Compact)
}

// parseFirst returns the result of the first layout that accepts s.
// The error of the first layout is reported when none does.
func parseFirst(s string, layouts ...string) (time.Time, error) {
	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q: %w", s, firstErr)
}
