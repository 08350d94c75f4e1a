package tracker

import (
	"strconv"
	"strings"
)

// =============================================================================
// WINDOW - Inclusive date range
// =============================================================================

// Window is an inclusive [Start, End] date range.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Current month so far: Oct 1 - today
type Window struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

// Len returns the inclusive day count, 0 for an inverted window.
func (w Window) Len() int {
	if w.End.Before(w.Start) {
		return 0
	}
	return DaysBetween(w.Start, w.End) + 1
}

// ClampEnd truncates the window so it never extends past limit.
func (w Window) ClampEnd(limit Date) Window {
	if w.End.After(limit) {
		w.End = limit
	}
	return w
}

// Days returns every date in the window.
func (w Window) Days() []Date {
	var days []Date
	for d := w.Start; d.BeforeOrEqual(w.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}

// YearWindow returns Jan 1 - Dec 31 of year.
func YearWindow(year int) Window {
	return Window{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

// =============================================================================
// PERIOD SELECTOR - Closed set: one month, one year, all time
// =============================================================================

// Period selects the completions an aggregation looks at. The set of
// implementations is closed; callers get the window through Bounds and
// never branch on an open enumeration.
type Period interface {
	// Bounds returns the window the period covers, or ok=false for
	// an unbounded period.
	Bounds() (w Window, ok bool)
	String() string
	sealed()
}

// MonthPeriod selects a single calendar month.
type MonthPeriod struct{ YearMonth }

// YearPeriod selects a single calendar year.
type YearPeriod struct{ Year int }

// AllTime selects every completion.
type AllTime struct{}

func (p MonthPeriod) Bounds() (Window, bool) { return p.Window(), true }
func (p YearPeriod) Bounds() (Window, bool)  { return YearWindow(p.Year), true }
func (AllTime) Bounds() (Window, bool)       { return Window{}, false }

func (p MonthPeriod) String() string { return "month:" + p.Key() }
func (p YearPeriod) String() string  { return "year:" + strconv.Itoa(p.Year) }
func (AllTime) String() string       { return "all_time" }

func (MonthPeriod) sealed() {}
func (YearPeriod) sealed()  {}
func (AllTime) sealed()     {}

// ParsePeriod resolves a selector name plus an optional value ("2025-03"
// for a month, "2025" for a year). An empty value means the one containing
// today. Names match case-insensitively: month/monthly, year/yearly,
// all/all_time/alltime.
func ParsePeriod(kind, value string, today Date) (Period, error) {
	value = strings.TrimSpace(value)
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(kind)), "-", "_") {
	case "month", "monthly":
		if value == "" {
			return MonthPeriod{today.YearMonth()}, nil
		}
		ym, err := ParseYearMonth(value)
		if err != nil {
			return nil, &ValidationError{Field: "month", Message: "expected YYYY-MM"}
		}
		return MonthPeriod{ym}, nil
	case "year", "yearly":
		if value == "" {
			return YearPeriod{Year: today.Year()}, nil
		}
		year, err := strconv.Atoi(value)
		if err != nil {
			return nil, &ValidationError{Field: "year", Message: "expected YYYY"}
		}
		return YearPeriod{Year: year}, nil
	case "all", "all_time", "alltime":
		return AllTime{}, nil
	}
	return nil, &ValidationError{Field: "period", Message: "unsupported period " + strconv.Quote(kind)}
}
