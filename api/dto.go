/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  tracker, analytics and insights types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around lists or mixed results

FORMATS:
  Dates are "YYYY-MM-DD", instants RFC 3339 UTC, percentages plain
  numbers with at most two decimals.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/streak-engine/analytics"
	"github.com/warp/streak-engine/csvio"
	"github.com/warp/streak-engine/insights"
	"github.com/warp/streak-engine/tracker"
)

// =============================================================================
// ENTITIES
// =============================================================================

type EntityDTO struct {
	ID               tracker.EntityID  `json:"id"`
	ParentID         *tracker.EntityID `json:"parent_id,omitempty"`
	Title            string            `json:"title"`
	Active           bool              `json:"is_active"`
	SupportsSubItems bool              `json:"supports_sub_items"`
	CreatedAt        string            `json:"created_at"`
}

type CreateEntityRequest struct {
	Title            string `json:"title"`
	SupportsSubItems bool   `json:"supports_sub_items"`
}

// UpdateEntityRequest leaves absent fields unchanged.
type UpdateEntityRequest struct {
	Title            *string `json:"title"`
	SupportsSubItems *bool   `json:"supports_sub_items"`
	Active           *bool   `json:"is_active"`
}

type CreateSubItemRequest struct {
	Title string `json:"title"`
}

// ToggleRequest selects the day to toggle; empty means today.
type ToggleRequest struct {
	Date string `json:"date"`
}

type ToggleResponse struct {
	EntityID  tracker.EntityID `json:"entity_id"`
	Date      tracker.Date     `json:"date"`
	Completed bool             `json:"completed"`
}

type SubItemStatusDTO struct {
	ID        tracker.EntityID `json:"id"`
	Title     string           `json:"title"`
	Completed bool             `json:"completed"`
}

// =============================================================================
// ANALYTICS
// =============================================================================

type WindowDTO struct {
	Start tracker.Date `json:"start"`
	End   tracker.Date `json:"end"`
}

type RunDTO struct {
	Length int        `json:"length"`
	Range  *WindowDTO `json:"range"`
}

type StreaksDTO struct {
	Current RunDTO `json:"current"`
	Best    RunDTO `json:"best"`
}

type MonthCountDTO struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type EntityCountDTO struct {
	EntityID tracker.EntityID `json:"entity_id"`
	Title    string           `json:"title"`
	Count    int              `json:"count"`
}

type MonthGroupDTO struct {
	Key      string           `json:"key"`
	Label    string           `json:"label"`
	Window   WindowDTO        `json:"window"`
	Entities []EntityCountDTO `json:"entities"`
	Total    int              `json:"total"`
}

type PlannedActualDTO struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Planned int    `json:"planned"`
	Actual  int    `json:"actual"`
}

type WeekdayCountDTO struct {
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
}

type MonthDatesDTO struct {
	Key   string         `json:"key"`
	Dates []tracker.Date `json:"dates"`
}

type EntityStatsDTO struct {
	Entity                 EntityDTO `json:"entity"`
	CompletedThisMonth     int       `json:"completed_this_month"`
	CompletedPreviousMonth int       `json:"completed_previous_month"`
	TotalCompleted         int       `json:"total_completed"`
	DaysInMonth            int       `json:"days_in_month"`
	MonthPercent           float64   `json:"month_percent"`
	MonthOverMonth         float64   `json:"month_over_month"`
}

type EntityReportDTO struct {
	Stats    EntityStatsDTO    `json:"stats"`
	Streaks  StreaksDTO        `json:"streaks"`
	Weekdays []WeekdayCountDTO `json:"weekdays"`
}

type SummaryResponse struct {
	Period   string           `json:"period"`
	Entities []EntityCountDTO `json:"entities"`
}

// =============================================================================
// INSIGHTS
// =============================================================================

type EntityScoreDTO struct {
	EntityID tracker.EntityID `json:"entity_id"`
	Title    string           `json:"title"`
	Value    int              `json:"value"`
}

type InsightsDTO struct {
	TotalCompletions int             `json:"total_completions"`
	ActiveEntities   int             `json:"active_entities"`
	HighestVolume    *EntityScoreDTO `json:"highest_volume"`
	HighestStreak    *EntityScoreDTO `json:"highest_streak"`
	PerfectDays      int             `json:"perfect_days"`
	MemberDays       int             `json:"member_days"`
	Consistency      float64         `json:"consistency"`
}

// =============================================================================
// CSV IMPORT
// =============================================================================

type RowSkipDTO struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResponse struct {
	Remap              map[tracker.EntityID]tracker.EntityID `json:"remap,omitempty"`
	EntitiesCreated    int                                   `json:"entities_created"`
	EntitiesSkipped    []RowSkipDTO                          `json:"entities_skipped,omitempty"`
	CompletionsCreated int                                   `json:"completions_created"`
	CompletionsSkipped []RowSkipDTO                          `json:"completions_skipped,omitempty"`
	CompletionsError   string                                `json:"completions_error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

func toEntityDTO(e tracker.Entity) EntityDTO {
	dto := EntityDTO{
		ID:               e.ID,
		Title:            e.Title,
		Active:           e.Active,
		SupportsSubItems: e.SupportsSubItems,
		CreatedAt:        e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.IsSubEntity() {
		parent := e.ParentID
		dto.ParentID = &parent
	}
	return dto
}

func toEntityDTOs(es []tracker.Entity) []EntityDTO {
	out := make([]EntityDTO, 0, len(es))
	for _, e := range es {
		out = append(out, toEntityDTO(e))
	}
	return out
}

func toWindowDTO(w tracker.Window) WindowDTO {
	return WindowDTO{Start: w.Start, End: w.End}
}

func toRunDTO(r analytics.Run) RunDTO {
	dto := RunDTO{Length: r.Length}
	if r.Range != nil {
		w := toWindowDTO(*r.Range)
		dto.Range = &w
	}
	return dto
}

func toEntityCountDTOs(cs []analytics.EntityCount) []EntityCountDTO {
	out := make([]EntityCountDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, EntityCountDTO{EntityID: c.EntityID, Title: c.Title, Count: c.Count})
	}
	return out
}

func toWeekdayDTOs(ws []analytics.WeekdayCount) []WeekdayCountDTO {
	out := make([]WeekdayCountDTO, 0, len(ws))
	for _, w := range ws {
		out = append(out, WeekdayCountDTO{Weekday: w.Name, Count: w.Count})
	}
	return out
}

func toEntityStatsDTO(s analytics.EntityStats) EntityStatsDTO {
	return EntityStatsDTO{
		Entity:                 toEntityDTO(s.Entity),
		CompletedThisMonth:     s.CompletedThisMonth,
		CompletedPreviousMonth: s.CompletedPreviousMonth,
		TotalCompleted:         s.TotalCompleted,
		DaysInMonth:            s.DaysInMonth,
		MonthPercent:           percent(s.MonthPercent),
		MonthOverMonth:         percent(s.MonthOverMonth),
	}
}

func toScoreDTO(s *insights.EntityScore) *EntityScoreDTO {
	if s == nil {
		return nil
	}
	return &EntityScoreDTO{EntityID: s.EntityID, Title: s.Title, Value: s.Value}
}

func toRowSkipDTOs(skips []*tracker.RowSkipError) []RowSkipDTO {
	if len(skips) == 0 {
		return nil
	}
	out := make([]RowSkipDTO, 0, len(skips))
	for _, s := range skips {
		out = append(out, RowSkipDTO{Line: s.Line, Reason: s.Reason})
	}
	return out
}

func toRemapDTO(r csvio.RemapTable) map[tracker.EntityID]tracker.EntityID {
	if r == nil {
		return nil
	}
	return map[tracker.EntityID]tracker.EntityID(r)
}

// percent renders a 2-dp decimal as a JSON number.
func percent(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
