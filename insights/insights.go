/*
insights.go - Account-wide rollups across all entities

PURPOSE:
  Combines the streak calculator and the aggregation engine into the
  numbers shown on an owner's insight page. Read-only.

ACCOUNT INSIGHTS:
  TotalCompletions:   every completion of the owner's top-level entities
  HighestVolume:      entity with the most completions (active or not)
  HighestStreak:      active entity with the longest best streak (> 0)
  PerfectDays:        days on which every active entity was completed
  MemberDays:         account creation day through today, inclusive
  Consistency:        TotalCompletions / days each active entity existed

TIES:
  Both "highest" picks prefer the lowest entity id, so the answer does
  not depend on store iteration order.

SEE ALSO:
  - analytics/streak.go
  - analytics/percent.go
*/
package insights

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/streak-engine/analytics"
	"github.com/warp/streak-engine/tracker"
)

// Engine computes insights from a store.
type Engine struct {
	Store     tracker.Store
	Clock     tracker.Clock
	Analytics *analytics.Engine
}

// NewEngine creates an insights engine and the aggregation engine it uses.
func NewEngine(store tracker.Store, clock tracker.Clock) *Engine {
	return &Engine{Store: store, Clock: clock, Analytics: analytics.NewEngine(store, clock)}
}

// EntityScore names the entity behind a "highest" figure.
type EntityScore struct {
	EntityID tracker.EntityID
	Title    string
	Value    int
}

// AccountInsights is the aggregate result for one owner.
type AccountInsights struct {
	TotalCompletions int
	ActiveEntities   int
	HighestVolume    *EntityScore // nil without completions
	HighestStreak    *EntityScore // nil when no active entity has a streak
	PerfectDays      int
	MemberDays       int
	Consistency      decimal.Decimal
}

// EntityReport is the full statistics view of one entity.
type EntityReport struct {
	Stats    analytics.EntityStats
	Streaks  analytics.Streaks
	Weekdays []analytics.WeekdayCount
}

// Account computes the insights for acct.
func (e *Engine) Account(ctx context.Context, acct tracker.Account) (AccountInsights, error) {
	owner := acct.ID
	today := e.Clock.Today()

	all, err := e.Store.ListEntities(ctx, owner, tracker.EntityFilter{})
	if err != nil {
		return AccountInsights{}, fmt.Errorf("list entities: %w", err)
	}
	completions, err := e.Store.ListOwnerCompletions(ctx, owner, nil)
	if err != nil {
		return AccountInsights{}, fmt.Errorf("list completions: %w", err)
	}

	var active []tracker.Entity
	for _, ent := range all {
		if ent.Active {
			active = append(active, ent)
		}
	}

	res := AccountInsights{
		TotalCompletions: len(completions),
		ActiveEntities:   len(active),
		HighestVolume:    highestVolume(all, completions),
		PerfectDays:      analytics.PerfectDays(completions, active),
		MemberDays:       tracker.Window{Start: e.Clock.DateOf(acct.CreatedAt), End: today}.Len(),
	}

	created := make([]tracker.Date, 0, len(active))
	for _, ent := range active {
		created = append(created, e.Clock.DateOf(ent.CreatedAt))
	}
	res.Consistency = analytics.ConsistencyPercent(len(completions), created, today)

	byEntity := make(map[tracker.EntityID][]tracker.Date, len(active))
	for _, c := range completions {
		byEntity[c.EntityID] = append(byEntity[c.EntityID], c.Date)
	}
	for _, ent := range active {
		best := analytics.BestStreak(byEntity[ent.ID]).Length
		if best == 0 {
			continue
		}
		res.HighestStreak = better(res.HighestStreak, EntityScore{EntityID: ent.ID, Title: ent.Title, Value: best})
	}
	return res, nil
}

// EntityReport returns month stats, streaks with their ranges and the
// all-time weekday frequency of one entity.
func (e *Engine) EntityReport(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) (EntityReport, error) {
	stats, err := e.Analytics.EntityStats(ctx, owner, id)
	if err != nil {
		return EntityReport{}, err
	}
	cs, err := e.Store.ListCompletions(ctx, id)
	if err != nil {
		return EntityReport{}, fmt.Errorf("list completions of %d: %w", id, err)
	}
	dates := tracker.Dates(cs)
	return EntityReport{
		Stats:    stats,
		Streaks:  analytics.ComputeStreaks(dates, e.Clock.Today()),
		Weekdays: analytics.WeekdayBuckets(dates),
	}, nil
}

func highestVolume(entities []tracker.Entity, completions []tracker.Completion) *EntityScore {
	counts := make(map[tracker.EntityID]int)
	for _, c := range completions {
		counts[c.EntityID]++
	}
	var top *EntityScore
	for _, ent := range entities {
		if n := counts[ent.ID]; n > 0 {
			top = better(top, EntityScore{EntityID: ent.ID, Title: ent.Title, Value: n})
		}
	}
	return top
}

// better keeps the higher value, then the lower id.
func better(cur *EntityScore, cand EntityScore) *EntityScore {
	if cur == nil || cand.Value > cur.Value || (cand.Value == cur.Value && cand.EntityID < cur.EntityID) {
		return &cand
	}
	return cur
}
