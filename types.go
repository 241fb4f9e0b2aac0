package apijson

import (
	"time"
)

// DateTime is an instant with a UTC offset, sent on the wire in the
// codec's DateTime format (ISODateTime by default).
type DateTime struct {
	time.Time
}

// NewDateTime wraps t.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// ParseDateTime parses s with the ISODateTime format.
func ParseDateTime(s string) (DateTime, error) {
	t, err := ISODateTime.Parse(s)
	if err != nil {
		return DateTime{}, err
	}
	return DateTime{Time: t}, nil
}

func (d DateTime) String() string {
	return ISODateTime.Format(d.Time)
}

// SQLDate is a calendar day represented as midnight of an instant,
// sent on the wire in the codec's SQL date format.
type SQLDate struct {
	time.Time
}

// NewSQLDate returns midnight of the given day in loc. A nil loc means UTC.
func NewSQLDate(year int, month time.Month, day int, loc *time.Location) SQLDate {
	if loc == nil {
		loc = time.UTC
	}
	return SQLDate{Time: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

func (d SQLDate) String() string {
	return d.Format(time.DateOnly)
}

// LocalDate is a date without a time of day or zone.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewLocalDate returns the normalized date, so 2024-02-30 becomes 2024-03-01.
func NewLocalDate(year int, month time.Month, day int) LocalDate {
	return LocalDateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// LocalDateOf returns the date on which t falls in its own location.
func LocalDateOf(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

// ParseLocalDate parses a yyyy-MM-dd string.
func ParseLocalDate(s string) (LocalDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return LocalDate{}, err
	}
	return LocalDateOf(t), nil
}

// In returns midnight at the start of d in loc.
func (d LocalDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// IsZero reports whether d is LocalDate{}, which names no day.
func (d LocalDate) IsZero() bool {
	return d == LocalDate{}
}

// Before reports whether d is an earlier day than other.
func (d LocalDate) Before(other LocalDate) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

func (d LocalDate) After(other LocalDate) bool {
	return other.Before(d)
}

// String returns yyyy-MM-dd, or "" for the zero LocalDate.
func (d LocalDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.In(time.UTC).Format(time.DateOnly)
}
