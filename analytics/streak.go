/*
streak.go - Current and best streak over a set of completion dates

PURPOSE:
  A streak is a run of consecutive calendar days with a completion.
  These functions are pure: they take the dates and "today" and never
  touch a store.

CURRENT STREAK:
  Walk dates newest first with expected = today. A date equal to expected
  extends the run and moves expected back one day; a date earlier than
  expected is a gap and ends the walk. Dates after today are ignored.
  No completion today means a current streak of 0.

BEST STREAK:
  Walk dates newest first; a run continues while each date is exactly
  one day before the previous one. Ties keep the most recent run.

EXAMPLE:
  Completions 01-01, 01-02, 01-03, 01-05; today 01-05:
    Current = 1 [01-05, 01-05]
    Best    = 3 [01-01, 01-03]

INPUT:
  Dates are assumed unique (the store enforces one completion per day).
  Order does not matter; both functions sort a copy.
*/
package analytics

import (
	"sort"

	"github.com/warp/streak-engine/tracker"
)

// Run is a streak length with its inclusive date range. Range is nil
// when Length is 0.
type Run struct {
	Length int
	Range  *tracker.Window
}

// Streaks pairs the current and best run of one entity.
type Streaks struct {
	Current Run
	Best    Run
}

// ComputeStreaks returns both runs for the given dates.
func ComputeStreaks(dates []tracker.Date, today tracker.Date) Streaks {
	desc := sortedDesc(dates)
	return Streaks{
		Current: currentRun(desc, today),
		Best:    bestRun(desc),
	}
}

// CurrentStreak returns the run ending today.
func CurrentStreak(dates []tracker.Date, today tracker.Date) Run {
	return currentRun(sortedDesc(dates), today)
}

// BestStreak returns the longest run in the whole history.
func BestStreak(dates []tracker.Date) Run {
	return bestRun(sortedDesc(dates))
}

func currentRun(desc []tracker.Date, today tracker.Date) Run {
	var (
		length   int
		from, to tracker.Date
	)
	expected := today
	for _, d := range desc {
		if d.Equal(expected) {
			if length == 0 {
				to = d
			}
			from = d
			length++
			expected = expected.AddDays(-1)
			continue
		}
		if d.Before(expected) {
			break
		}
	}
	return newRun(length, from, to)
}

func bestRun(desc []tracker.Date) Run {
	var (
		best, run        int
		bestFrom, bestTo tracker.Date
		runFrom, runTo   tracker.Date
	)
	for i, d := range desc {
		if i > 0 && d.Equal(desc[i-1].AddDays(-1)) {
			run++
			runFrom = d
		} else {
			run = 1
			runFrom, runTo = d, d
		}
		if run > best {
			best, bestFrom, bestTo = run, runFrom, runTo
		}
	}
	return newRun(best, bestFrom, bestTo)
}

func newRun(length int, from, to tracker.Date) Run {
	if length == 0 {
		return Run{}
	}
	return Run{Length: length, Range: &tracker.Window{Start: from, End: to}}
}

func sortedDesc(dates []tracker.Date) []tracker.Date {
	desc := make([]tracker.Date, len(dates))
	copy(desc, dates)
	sort.Slice(desc, func(i, j int) bool { return desc[i].After(desc[j]) })
	return desc
}
