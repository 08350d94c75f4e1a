package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/warp/streak-engine/tracker"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// roundHalfUp rounds to 2 decimals, ties toward positive infinity.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// ratioPercent returns part/whole*100 rounded, or 0 when whole is 0.
func ratioPercent(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return roundHalfUp(decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))))
}

// MonthOverMonth returns (current - previous) / previous * 100, rounded to
// 2 decimals. A previous count of 0 yields 0.
func MonthOverMonth(current, previous int) decimal.Decimal {
	return ratioPercent(current-previous, previous)
}

// CompletionPercent returns completions / days * 100, rounded to 2 decimals.
func CompletionPercent(completions, days int) decimal.Decimal {
	return ratioPercent(completions, days)
}

// ConsistencyPercent divides total completions by the days every entity
// has existed (creation day through today, inclusive), as a percentage.
// Entities created after today contribute nothing.
func ConsistencyPercent(totalCompletions int, created []tracker.Date, today tracker.Date) decimal.Decimal {
	available := 0
	for _, c := range created {
		available += tracker.Window{Start: c, End: today}.Len()
	}
	return ratioPercent(totalCompletions, available)
}

// PerfectDays counts distinct days on which every active entity has a
// completion. Completions of entities outside active are ignored; no
// active entities means no perfect days.
func PerfectDays(completions []tracker.Completion, active []tracker.Entity) int {
	if len(active) == 0 {
		return 0
	}
	isActive := make(map[tracker.EntityID]bool, len(active))
	for _, e := range active {
		isActive[e.ID] = true
	}

	perDay := make(map[string]map[tracker.EntityID]bool)
	for _, c := range completions {
		if !isActive[c.EntityID] {
			continue
		}
		day := c.Date.String()
		if perDay[day] == nil {
			perDay[day] = make(map[tracker.EntityID]bool)
		}
		perDay[day][c.EntityID] = true
	}

	perfect := 0
	for _, done := range perDay {
		if len(done) == len(active) {
			perfect++
		}
	}
	return perfect
}
