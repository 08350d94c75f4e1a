package tracker

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day with no time-of-day
// =============================================================================

// DateLayout is the ISO calendar date layout used on the wire and in CSV.
const DateLayout = "2006-01-02"

// Date is a calendar date. Internally it is UTC midnight so that day
// arithmetic never crosses a DST boundary.
type Date struct {
	t time.Time
}

// NewDate builds a date, normalizing overflow the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int              { return d.t.Year() }
func (d Date) Month() time.Month      { return d.t.Month() }
func (d Date) Day() int               { return d.t.Day() }
func (d Date) Weekday() time.Weekday  { return d.t.Weekday() }
func (d Date) IsZero() bool           { return d.t.IsZero() }
func (d Date) Time() time.Time        { return d.t }
func (d Date) YearMonth() YearMonth   { return YearMonth{Year: d.Year(), Month: d.Month()} }
func (d Date) String() string         { return d.t.Format(DateLayout) }

// MarshalText renders the ISO form so dates serialize as "2025-01-31".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses the ISO form.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// YEAR-MONTH
// =============================================================================

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) First() Date { return NewDate(ym.Year, ym.Month, 1) }
func (ym YearMonth) Last() Date  { return NewDate(ym.Year, ym.Month+1, 1).AddDays(-1) }
func (ym YearMonth) Days() int   { return ym.Last().Day() }

// AddMonths shifts by n months.
func (ym YearMonth) AddMonths(n int) YearMonth {
	return ym.First().AddMonths(n).YearMonth()
}

// Window returns [first, last] of the month.
func (ym YearMonth) Window() Window { return Window{Start: ym.First(), End: ym.Last()} }

// Key renders "YYYY-MM".
func (ym YearMonth) Key() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// Label renders "January 2025".
func (ym YearMonth) Label() string { return fmt.Sprintf("%s %d", ym.Month, ym.Year) }

func (ym YearMonth) String() string { return ym.Key() }

// =============================================================================
// CLOCK - Source of "today"
// =============================================================================

// Clock resolves the current calendar date. Every date-dependent
// computation goes through one so tests can pin today.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// SystemClock uses time.Now in loc (UTC when nil).
func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

// FixedClock always reports the given date.
func FixedClock(today Date) Clock {
	t := today.Time()
	return Clock{Now: func() time.Time { return t }, Location: time.UTC}
}

// Today returns the current calendar date.
func (c Clock) Today() Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return DateOf(now(), c.Location)
}

// Instant returns the current instant.
func (c Clock) Instant() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// DateOf converts an instant to a calendar date in the clock's location.
func (c Clock) DateOf(t time.Time) Date {
	return DateOf(t, c.Location)
}
