/*
aggregate.go - Windowed counts over an owner's completions

PURPOSE:
  Answers "how many completions, when?" for one entity or for all of an
  owner's active entities. Every call reads the store from scratch; the
  engine holds no state besides its store and clock.

WINDOWS:
  Calendar year:      [Jan 1, Dec 31] of today's year, 12 zero-filled buckets
  Trailing months:    12 months ending with today's month, each bucket
                      [month-start, min(month-end, today)]
  Planned vs actual:  Jan of today's year through today's month, same
                      truncation as trailing months
  Period selector:    month / year / all time (tracker.Period)

EXAMPLE:
  Today 2025-03-10. Trailing months run 2024-04 .. 2025-03; the last
  bucket covers [2025-03-01, 2025-03-10] and plans 10 days.

OWNERSHIP:
  Any entity id argument is resolved with Store.GetEntity(owner, id), so a
  foreign or missing entity is a NotFoundError before anything is counted.

SEE ALSO:
  - streak.go: Current/best runs
  - percent.go: Percentages, consistency, perfect days
*/
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/streak-engine/tracker"
)

// TrailingMonths is the number of buckets in a trailing histogram.
const TrailingMonths = 12

// Engine runs aggregations against a store.
type Engine struct {
	Store tracker.Store
	Clock tracker.Clock
}

// NewEngine creates an engine.
func NewEngine(store tracker.Store, clock tracker.Clock) *Engine {
	return &Engine{Store: store, Clock: clock}
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// MonthCount is one calendar-year bucket. Name is the upper-case month
// name ("JANUARY").
type MonthCount struct {
	Month time.Month
	Name  string
	Count int
}

// EntityCount is one entity's completion count in some window.
type EntityCount struct {
	EntityID tracker.EntityID
	Title    string
	Count    int
}

// MonthGroup is one trailing-month bucket with per-entity counts.
type MonthGroup struct {
	Month    tracker.YearMonth
	Key      string // "2025-01"
	Label    string // "January 2025"
	Window   tracker.Window
	Entities []EntityCount
	Total    int
}

// PlannedActual compares the days available in a month with the days done.
type PlannedActual struct {
	Month   tracker.YearMonth
	Key     string
	Label   string
	Planned int
	Actual  int
}

// WeekdayCount is one weekday bucket. Name is upper-case ("SUNDAY").
type WeekdayCount struct {
	Weekday time.Weekday
	Name    string
	Count   int
}

// MonthDates lists the completion dates of one month, newest first.
type MonthDates struct {
	Month tracker.YearMonth
	Key   string
	Dates []tracker.Date
}

// EntityStats summarizes one entity's current month.
type EntityStats struct {
	Entity                 tracker.Entity
	CompletedThisMonth     int
	CompletedPreviousMonth int
	TotalCompleted         int
	DaysInMonth            int
	MonthPercent           decimal.Decimal
	MonthOverMonth         decimal.Decimal
}

// =============================================================================
// HISTOGRAMS
// =============================================================================

// MonthlyHistogram counts completions per month of the current calendar
// year. A nil entity counts every top-level entity of the owner, active
// or not.
func (e *Engine) MonthlyHistogram(ctx context.Context, owner tracker.OwnerID, entity *tracker.EntityID) ([]MonthCount, error) {
	year := tracker.YearWindow(e.Clock.Today().Year())

	var (
		cs  []tracker.Completion
		err error
	)
	if entity != nil {
		if _, err := e.entity(ctx, owner, *entity); err != nil {
			return nil, err
		}
		cs, err = e.Store.ListCompletionsBetween(ctx, *entity, year)
	} else {
		cs, err = e.Store.ListOwnerCompletions(ctx, owner, &year)
	}
	if err != nil {
		return nil, fmt.Errorf("list completions for %s: %w", year, err)
	}

	buckets := make([]MonthCount, 12)
	for i := range buckets {
		m := time.Month(i + 1)
		buckets[i] = MonthCount{Month: m, Name: strings.ToUpper(m.String())}
	}
	for _, c := range cs {
		if year.Contains(c.Date) {
			buckets[c.Date.Month()-1].Count++
		}
	}
	return buckets, nil
}

// TrailingTwelveMonths counts completions per month over the last 12
// months, oldest first. A nil entity fans out over every active entity;
// each bucket then lists them in store order.
func (e *Engine) TrailingTwelveMonths(ctx context.Context, owner tracker.OwnerID, entity *tracker.EntityID) ([]MonthGroup, error) {
	entities, err := e.scope(ctx, owner, entity)
	if err != nil {
		return nil, err
	}

	today := e.Clock.Today()
	current := today.YearMonth()
	groups := make([]MonthGroup, 0, TrailingMonths)
	for i := TrailingMonths - 1; i >= 0; i-- {
		ym := current.AddMonths(-i)
		w := ym.Window().ClampEnd(today)
		g := MonthGroup{
			Month:    ym,
			Key:      ym.Key(),
			Label:    ym.Label(),
			Window:   w,
			Entities: make([]EntityCount, 0, len(entities)),
		}
		for _, ent := range entities {
			n, err := e.Store.CountCompletionsBetween(ctx, ent.ID, w)
			if err != nil {
				return nil, fmt.Errorf("count completions of %d in %s: %w", ent.ID, w, err)
			}
			g.Entities = append(g.Entities, EntityCount{EntityID: ent.ID, Title: ent.Title, Count: n})
			g.Total += n
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// PlannedVsActual reports, for January through the current month, the
// days in each month up to today against the days completed.
func (e *Engine) PlannedVsActual(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) ([]PlannedActual, error) {
	if _, err := e.entity(ctx, owner, id); err != nil {
		return nil, err
	}

	today := e.Clock.Today()
	out := make([]PlannedActual, 0, int(today.Month()))
	for m := time.January; m <= today.Month(); m++ {
		ym := tracker.YearMonth{Year: today.Year(), Month: m}
		w := ym.Window().ClampEnd(today)
		n, err := e.Store.CountCompletionsBetween(ctx, id, w)
		if err != nil {
			return nil, fmt.Errorf("count completions of %d in %s: %w", id, w, err)
		}
		out = append(out, PlannedActual{
			Month:   ym,
			Key:     ym.Key(),
			Label:   ym.Label(),
			Planned: w.Len(),
			Actual:  n,
		})
	}
	return out, nil
}

// =============================================================================
// PER-ENTITY
// =============================================================================

// EntityStats returns current-month and all-time counts for one entity,
// with the completion rate of this month and its change from last month.
func (e *Engine) EntityStats(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) (EntityStats, error) {
	ent, err := e.entity(ctx, owner, id)
	if err != nil {
		return EntityStats{}, err
	}

	month := e.Clock.Today().YearMonth()
	cur, err := e.Store.CountCompletionsBetween(ctx, id, month.Window())
	if err != nil {
		return EntityStats{}, fmt.Errorf("count completions of %d in %s: %w", id, month, err)
	}
	prevMonth := month.AddMonths(-1)
	prev, err := e.Store.CountCompletionsBetween(ctx, id, prevMonth.Window())
	if err != nil {
		return EntityStats{}, fmt.Errorf("count completions of %d in %s: %w", id, prevMonth, err)
	}
	total, err := e.Store.CountCompletions(ctx, id)
	if err != nil {
		return EntityStats{}, fmt.Errorf("count completions of %d: %w", id, err)
	}

	return EntityStats{
		Entity:                 ent,
		CompletedThisMonth:     cur,
		CompletedPreviousMonth: prev,
		TotalCompleted:         total,
		DaysInMonth:            month.Days(),
		MonthPercent:           CompletionPercent(cur, month.Days()),
		MonthOverMonth:         MonthOverMonth(cur, prev),
	}, nil
}

// CompletionSummary counts completions per active entity in the period,
// never looking past today.
func (e *Engine) CompletionSummary(ctx context.Context, owner tracker.OwnerID, period tracker.Period) ([]EntityCount, error) {
	entities, err := e.Store.ListEntities(ctx, owner, tracker.EntityFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	w, bounded := period.Bounds()
	w = w.ClampEnd(e.Clock.Today())

	out := make([]EntityCount, 0, len(entities))
	for _, ent := range entities {
		var n int
		if bounded {
			n, err = e.Store.CountCompletionsBetween(ctx, ent.ID, w)
		} else {
			n, err = e.Store.CountCompletions(ctx, ent.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("count completions of %d for %s: %w", ent.ID, period, err)
		}
		out = append(out, EntityCount{EntityID: ent.ID, Title: ent.Title, Count: n})
	}
	return out, nil
}

// WeekdayFrequency counts one entity's completions per weekday in the
// period. Buckets are always Sunday through Saturday.
func (e *Engine) WeekdayFrequency(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID, period tracker.Period) ([]WeekdayCount, error) {
	if _, err := e.entity(ctx, owner, id); err != nil {
		return nil, err
	}
	cs, err := e.completionsIn(ctx, id, period)
	if err != nil {
		return nil, err
	}
	return WeekdayBuckets(tracker.Dates(cs)), nil
}

// WeekdayBuckets tallies dates into Sunday..Saturday buckets.
func WeekdayBuckets(dates []tracker.Date) []WeekdayCount {
	buckets := make([]WeekdayCount, 7)
	for i := range buckets {
		wd := time.Weekday(i)
		buckets[i] = WeekdayCount{Weekday: wd, Name: strings.ToUpper(wd.String())}
	}
	for _, d := range dates {
		buckets[d.Weekday()].Count++
	}
	return buckets
}

// CompletedDates maps entity id to its completion dates, newest first,
// optionally restricted to one month. A nil entity covers every active
// entity.
func (e *Engine) CompletedDates(ctx context.Context, owner tracker.OwnerID, entity *tracker.EntityID, month *tracker.YearMonth) (map[tracker.EntityID][]tracker.Date, error) {
	entities, err := e.scope(ctx, owner, entity)
	if err != nil {
		return nil, err
	}

	var period tracker.Period = tracker.AllTime{}
	if month != nil {
		period = tracker.MonthPeriod{YearMonth: *month}
	}
	out := make(map[tracker.EntityID][]tracker.Date, len(entities))
	for _, ent := range entities {
		cs, err := e.completionsIn(ctx, ent.ID, period)
		if err != nil {
			return nil, err
		}
		out[ent.ID] = tracker.Dates(cs)
	}
	return out, nil
}

// TrailingMonthDates lists one entity's completion dates for each of the
// last 12 full months, current month first.
func (e *Engine) TrailingMonthDates(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) ([]MonthDates, error) {
	if _, err := e.entity(ctx, owner, id); err != nil {
		return nil, err
	}

	current := e.Clock.Today().YearMonth()
	out := make([]MonthDates, 0, TrailingMonths)
	for i := 0; i < TrailingMonths; i++ {
		ym := current.AddMonths(-i)
		cs, err := e.Store.ListCompletionsBetween(ctx, id, ym.Window())
		if err != nil {
			return nil, fmt.Errorf("list completions of %d in %s: %w", id, ym, err)
		}
		out = append(out, MonthDates{Month: ym, Key: ym.Key(), Dates: tracker.Dates(cs)})
	}
	return out, nil
}

// CurrentStreak returns the run of one entity ending today.
func (e *Engine) CurrentStreak(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) (Run, error) {
	if _, err := e.entity(ctx, owner, id); err != nil {
		return Run{}, err
	}
	cs, err := e.Store.ListCompletions(ctx, id)
	if err != nil {
		return Run{}, fmt.Errorf("list completions of %d: %w", id, err)
	}
	return CurrentStreak(tracker.Dates(cs), e.Clock.Today()), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// entity resolves a top-level entity of owner.
func (e *Engine) entity(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) (tracker.Entity, error) {
	ent, err := e.Store.GetEntity(ctx, owner, id)
	if err != nil {
		return tracker.Entity{}, err
	}
	if ent.IsSubEntity() {
		return tracker.Entity{}, &tracker.NotFoundError{Kind: "entity", ID: int64(id)}
	}
	return ent, nil
}

// scope returns the single entity asked for, or every active entity.
func (e *Engine) scope(ctx context.Context, owner tracker.OwnerID, id *tracker.EntityID) ([]tracker.Entity, error) {
	if id != nil {
		ent, err := e.entity(ctx, owner, *id)
		if err != nil {
			return nil, err
		}
		return []tracker.Entity{ent}, nil
	}
	entities, err := e.Store.ListEntities(ctx, owner, tracker.EntityFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return entities, nil
}

func (e *Engine) completionsIn(ctx context.Context, id tracker.EntityID, period tracker.Period) ([]tracker.Completion, error) {
	var (
		cs  []tracker.Completion
		err error
	)
	if w, ok := period.Bounds(); ok {
		cs, err = e.Store.ListCompletionsBetween(ctx, id, w)
	} else {
		cs, err = e.Store.ListCompletions(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("list completions of %d for %s: %w", id, period, err)
	}
	return cs, nil
}
