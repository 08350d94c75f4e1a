/*
handlers.go - HTTP API handlers for the streak engine

PURPOSE:
  Exposes entity lifecycle, analytics, insights and CSV transfer via a
  REST API. Handles HTTP request/response and JSON serialization, and
  delegates everything else to the domain packages.

ENDPOINTS:
  Entities:
    GET    /api/entities                      List active entities
    POST   /api/entities                      Create entity
    GET    /api/entities/{id}                 Get entity
    PATCH  /api/entities/{id}                 Edit title/flags
    DELETE /api/entities/{id}                 Cascade delete
    POST   /api/entities/{id}/toggle          Toggle a day (default today)
    PUT    /api/entities/{id}/completions/{d} Mark day completed
    DELETE /api/entities/{id}/completions/{d} Undo day

  Per-entity analytics:
    GET    /api/entities/{id}/stats           Month counts and percentages
    GET    /api/entities/{id}/report          Stats + streaks + weekdays
    GET    /api/entities/{id}/streak          Current streak
    GET    /api/entities/{id}/weekdays        ?period=month|year|all&value=
    GET    /api/entities/{id}/planned-actual  Jan..current month
    GET    /api/entities/{id}/monthly-dates   Last 12 months of dates

  Owner-wide analytics:
    GET    /api/analytics/monthly             ?entity= calendar-year histogram
    GET    /api/analytics/trailing            ?entity= trailing 12 months
    GET    /api/analytics/summary             ?period=&value=
    GET    /api/analytics/dates               ?entity=&month=
    GET    /api/insights                      Account insights

  CSV:
    GET    /api/export/entities.csv
    GET    /api/export/completions.csv
    POST   /api/import                        multipart: entities[, completions]
    POST   /api/import/completions            multipart: completions + remap

ERROR HANDLING:
  Domain errors map to status codes in writeDomainError:
  - 400: ValidationError
  - 404: NotFoundError (also for entities owned by someone else)
  - 409: ConflictError
  - 500: Anything else, logged with the request id

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/streak-engine/analytics"
	"github.com/warp/streak-engine/csvio"
	"github.com/warp/streak-engine/insights"
	"github.com/warp/streak-engine/tracker"
)

const maxUpload = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers need from persistence.
type Store interface {
	tracker.TxStore
	tracker.AccountStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *tracker.Service
	Analytics *analytics.Engine
	Insights  *insights.Engine
	CSV       *csvio.Codec
	Accounts  tracker.AccountStore
	Clock     tracker.Clock
	Log       zerolog.Logger
}

// NewHandler wires every domain component to one store and clock.
func NewHandler(store Store, clock tracker.Clock, log zerolog.Logger) *Handler {
	svc := tracker.NewService(store)
	svc.Clock = clock
	svc.Log = log

	codec := csvio.NewCodec(store)
	codec.Clock = clock
	codec.Log = log

	ins := insights.NewEngine(store, clock)
	return &Handler{
		Service:   svc,
		Analytics: ins.Analytics,
		Insights:  ins,
		CSV:       codec,
		Accounts:  store,
		Clock:     clock,
		Log:       log,
	}
}

// =============================================================================
// ENTITY ENDPOINTS
// =============================================================================

// ListEntities returns the owner's active entities.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.Service.ListEntities(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, "Failed to list entities", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTOs(entities))
}

// GetEntity returns a single entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	e, err := h.Service.GetEntity(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(e))
}

// CreateEntity creates a new entity.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.Service.CreateEntity(r.Context(), ownerFrom(r.Context()), req.Title, req.SupportsSubItems)
	if err != nil {
		writeDomainError(w, r, "Failed to create entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityDTO(e))
}

// UpdateEntity applies a partial edit.
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req UpdateEntityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.Service.EditEntity(r.Context(), ownerFrom(r.Context()), id, tracker.EntityPatch{
		Title:            req.Title,
		SupportsSubItems: req.SupportsSubItems,
		Active:           req.Active,
	})
	if err != nil {
		writeDomainError(w, r, "Failed to update entity", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(e))
}

// DeleteEntity removes an entity with everything under it.
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteEntity(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeDomainError(w, r, "Failed to delete entity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleEntity flips one day. The body is optional.
func (h *Handler) ToggleEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	day, ok := h.toggleDay(w, r)
	if !ok {
		return
	}
	completed, err := h.Service.Toggle(r.Context(), ownerFrom(r.Context()), id, day)
	if err != nil {
		writeDomainError(w, r, "Failed to toggle completion", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{EntityID: id, Date: day, Completed: completed})
}

// MarkCompleted records a completion; repeating it is a no-op.
func (h *Handler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkCompleted(r.Context(), ownerFrom(r.Context()), id, day); err != nil {
		writeDomainError(w, r, "Failed to mark completion", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{EntityID: id, Date: day, Completed: true})
}

// UndoCompleted removes a completion; repeating it is a no-op.
func (h *Handler) UndoCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.UndoCompleted(r.Context(), ownerFrom(r.Context()), id, day); err != nil {
		writeDomainError(w, r, "Failed to undo completion", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{EntityID: id, Date: day, Completed: false})
}

// =============================================================================
// SUB-ITEM ENDPOINTS
// =============================================================================

// ListSubItems returns the active sub-items of an entity.
func (h *Handler) ListSubItems(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	items, err := h.Service.ListSubEntities(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to list sub-items", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTOs(items))
}

// CreateSubItem adds a sub-item under an entity.
func (h *Handler) CreateSubItem(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req CreateSubItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.Service.CreateSubEntity(r.Context(), ownerFrom(r.Context()), id, req.Title)
	if err != nil {
		writeDomainError(w, r, "Failed to create sub-item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityDTO(item))
}

// GetSubItemStatus reports which sub-items are done on ?date= (default today).
func (h *Handler) GetSubItemStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	day, ok := h.queryDay(w, r)
	if !ok {
		return
	}
	statuses, err := h.Service.SubEntityStatuses(r.Context(), ownerFrom(r.Context()), id, day)
	if err != nil {
		writeDomainError(w, r, "Failed to get sub-item status", err)
		return
	}
	out := make([]SubItemStatusDTO, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, SubItemStatusDTO{ID: s.ID, Title: s.Title, Completed: s.Completed})
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateSubItem renames a sub-item.
func (h *Handler) UpdateSubItem(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	var req CreateSubItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.Service.EditSubEntity(r.Context(), ownerFrom(r.Context()), id, req.Title)
	if err != nil {
		writeDomainError(w, r, "Failed to update sub-item", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(item))
}

// DeleteSubItem removes a sub-item and its completions.
func (h *Handler) DeleteSubItem(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteSubEntity(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeDomainError(w, r, "Failed to delete sub-item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleSubItem flips one day of a sub-item.
func (h *Handler) ToggleSubItem(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	day, ok := h.toggleDay(w, r)
	if !ok {
		return
	}
	completed, err := h.Service.ToggleSubEntity(r.Context(), ownerFrom(r.Context()), id, day)
	if err != nil {
		writeDomainError(w, r, "Failed to toggle sub-item", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{EntityID: id, Date: day, Completed: completed})
}

// =============================================================================
// PER-ENTITY ANALYTICS
// =============================================================================

// GetEntityStats returns this month's numbers for one entity.
func (h *Handler) GetEntityStats(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	stats, err := h.Analytics.EntityStats(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityStatsDTO(stats))
}

// GetEntityReport returns stats, streaks and weekday frequency.
func (h *Handler) GetEntityReport(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	rep, err := h.Insights.EntityReport(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get report", err)
		return
	}
	writeJSON(w, http.StatusOK, EntityReportDTO{
		Stats:    toEntityStatsDTO(rep.Stats),
		Streaks:  StreaksDTO{Current: toRunDTO(rep.Streaks.Current), Best: toRunDTO(rep.Streaks.Best)},
		Weekdays: toWeekdayDTOs(rep.Weekdays),
	})
}

// GetCurrentStreak returns the run ending today.
func (h *Handler) GetCurrentStreak(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	run, err := h.Analytics.CurrentStreak(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get streak", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// GetWeekdayFrequency counts completions per weekday in a period.
func (h *Handler) GetWeekdayFrequency(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	period, ok := h.periodQuery(w, r)
	if !ok {
		return
	}
	buckets, err := h.Analytics.WeekdayFrequency(r.Context(), ownerFrom(r.Context()), id, period)
	if err != nil {
		writeDomainError(w, r, "Failed to get weekday frequency", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekdayDTOs(buckets))
}

// GetPlannedVsActual compares days available with days completed per month.
func (h *Handler) GetPlannedVsActual(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	rows, err := h.Analytics.PlannedVsActual(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get planned vs actual", err)
		return
	}
	out := make([]PlannedActualDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, PlannedActualDTO{Key: p.Key, Label: p.Label, Planned: p.Planned, Actual: p.Actual})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTrailingMonthDates lists completion dates for the last 12 months.
func (h *Handler) GetTrailingMonthDates(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}
	months, err := h.Analytics.TrailingMonthDates(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, "Failed to get monthly dates", err)
		return
	}
	out := make([]MonthDatesDTO, 0, len(months))
	for _, m := range months {
		dates := m.Dates
		if dates == nil {
			dates = []tracker.Date{}
		}
		out = append(out, MonthDatesDTO{Key: m.Key, Dates: dates})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// OWNER-WIDE ANALYTICS
// =============================================================================

// GetMonthlyHistogram counts completions per month of this year.
func (h *Handler) GetMonthlyHistogram(w http.ResponseWriter, r *http.Request) {
	entity, ok := optionalEntity(w, r)
	if !ok {
		return
	}
	buckets, err := h.Analytics.MonthlyHistogram(r.Context(), ownerFrom(r.Context()), entity)
	if err != nil {
		writeDomainError(w, r, "Failed to get monthly histogram", err)
		return
	}
	out := make([]MonthCountDTO, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, MonthCountDTO{Month: b.Name, Count: b.Count})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTrailingMonths counts completions per entity for the last 12 months.
func (h *Handler) GetTrailingMonths(w http.ResponseWriter, r *http.Request) {
	entity, ok := optionalEntity(w, r)
	if !ok {
		return
	}
	groups, err := h.Analytics.TrailingTwelveMonths(r.Context(), ownerFrom(r.Context()), entity)
	if err != nil {
		writeDomainError(w, r, "Failed to get trailing months", err)
		return
	}
	out := make([]MonthGroupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, MonthGroupDTO{
			Key:      g.Key,
			Label:    g.Label,
			Window:   toWindowDTO(g.Window),
			Entities: toEntityCountDTOs(g.Entities),
			Total:    g.Total,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCompletionSummary counts completions per active entity in a period.
func (h *Handler) GetCompletionSummary(w http.ResponseWriter, r *http.Request) {
	period, ok := h.periodQuery(w, r)
	if !ok {
		return
	}
	counts, err := h.Analytics.CompletionSummary(r.Context(), ownerFrom(r.Context()), period)
	if err != nil {
		writeDomainError(w, r, "Failed to get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Period: period.String(), Entities: toEntityCountDTOs(counts)})
}

// GetCompletedDates maps entity id to its completion dates.
func (h *Handler) GetCompletedDates(w http.ResponseWriter, r *http.Request) {
	entity, ok := optionalEntity(w, r)
	if !ok {
		return
	}
	var month *tracker.YearMonth
	if raw := r.URL.Query().Get("month"); raw != "" {
		ym, err := tracker.ParseYearMonth(raw)
		if err != nil {
			writeDomainError(w, r, "Invalid month", &tracker.ValidationError{Field: "month", Message: "expected YYYY-MM"})
			return
		}
		month = &ym
	}
	dates, err := h.Analytics.CompletedDates(r.Context(), ownerFrom(r.Context()), entity, month)
	if err != nil {
		writeDomainError(w, r, "Failed to get completed dates", err)
		return
	}
	out := make(map[string][]tracker.Date, len(dates))
	for id, ds := range dates {
		if ds == nil {
			ds = []tracker.Date{}
		}
		out[strconv.FormatInt(int64(id), 10)] = ds
	}
	writeJSON(w, http.StatusOK, out)
}

// GetInsights returns the account-wide rollup.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	res, err := h.Insights.Account(r.Context(), accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, "Failed to get insights", err)
		return
	}
	writeJSON(w, http.StatusOK, InsightsDTO{
		TotalCompletions: res.TotalCompletions,
		ActiveEntities:   res.ActiveEntities,
		HighestVolume:    toScoreDTO(res.HighestVolume),
		HighestStreak:    toScoreDTO(res.HighestStreak),
		PerfectDays:      res.PerfectDays,
		MemberDays:       res.MemberDays,
		Consistency:      percent(res.Consistency),
	})
}

// =============================================================================
// CSV ENDPOINTS
// =============================================================================

// ExportEntities downloads entities.csv.
func (h *Handler) ExportEntities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=entities.csv")
	if err := h.CSV.ExportEntities(r.Context(), ownerFrom(r.Context()), w); err != nil {
		writeDomainError(w, r, "Failed to export entities", err)
	}
}

// ExportCompletions downloads completions.csv.
func (h *Handler) ExportCompletions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=completions.csv")
	if err := h.CSV.ExportCompletions(r.Context(), ownerFrom(r.Context()), w); err != nil {
		writeDomainError(w, r, "Failed to export completions", err)
	}
}

// Import loads an "entities" file and, if present, a "completions" file
// remapped onto the new entities.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	owner := ownerFrom(r.Context())

	entities, ok := formFile(w, r, "entities", true)
	if !ok {
		return
	}
	defer entities.Close()
	ents, err := h.CSV.ImportEntities(r.Context(), owner, entities)
	if err != nil {
		writeDomainError(w, r, "Failed to import entities", err)
		return
	}
	countRows("entities", ents.Created, len(ents.Skipped))
	resp := ImportResponse{
		Remap:           toRemapDTO(ents.Remap),
		EntitiesCreated: ents.Created,
		EntitiesSkipped: toRowSkipDTOs(ents.Skipped),
	}

	completions, ok := formFile(w, r, "completions", false)
	if !ok {
		return
	}
	if completions != nil {
		defer completions.Close()
		cs, err := h.CSV.ImportCompletions(r.Context(), owner, completions, ents.Remap)
		if err != nil {
			// The entities are committed; the caller still needs the remap.
			status := statusFor(err)
			resp.CompletionsError = err.Error()
			if status == http.StatusInternalServerError {
				zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Failed to import completions")
				resp.CompletionsError = "Failed to import completions"
			}
			writeJSON(w, status, resp)
			return
		}
		countRows("completions", cs.Created, len(cs.Skipped))
		resp.CompletionsCreated = cs.Created
		resp.CompletionsSkipped = toRowSkipDTOs(cs.Skipped)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ImportCompletions loads a "completions" file against a caller-supplied
// "remap" form field (JSON object, old id -> new id).
func (h *Handler) ImportCompletions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	var remap csvio.RemapTable
	if err := json.Unmarshal([]byte(r.FormValue("remap")), &remap); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid remap", err)
		return
	}
	completions, ok := formFile(w, r, "completions", true)
	if !ok {
		return
	}
	defer completions.Close()

	cs, err := h.CSV.ImportCompletions(r.Context(), ownerFrom(r.Context()), completions, remap)
	if err != nil {
		writeDomainError(w, r, "Failed to import completions", err)
		return
	}
	countRows("completions", cs.Created, len(cs.Skipped))
	writeJSON(w, http.StatusOK, ImportResponse{
		CompletionsCreated: cs.Created,
		CompletionsSkipped: toRowSkipDTOs(cs.Skipped),
	})
}

func countRows(kind string, created, skipped int) {
	csvRowsTotal.WithLabelValues(kind, "created").Add(float64(created))
	csvRowsTotal.WithLabelValues(kind, "skipped").Add(float64(skipped))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's category. Server
// errors are logged and their details withheld.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(message)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// statusFor maps a domain error category to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func entityParam(w http.ResponseWriter, r *http.Request) (tracker.EntityID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", fmt.Errorf("id %q", raw))
		return 0, false
	}
	return tracker.EntityID(id), true
}

func optionalEntity(w http.ResponseWriter, r *http.Request) (*tracker.EntityID, bool) {
	raw := r.URL.Query().Get("entity")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid entity", fmt.Errorf("entity %q", raw))
		return nil, false
	}
	eid := tracker.EntityID(id)
	return &eid, true
}

func dateParam(w http.ResponseWriter, r *http.Request) (tracker.Date, bool) {
	d, err := tracker.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return tracker.Date{}, false
	}
	return d, true
}

// toggleDay reads an optional ToggleRequest body; no date means today.
func (h *Handler) toggleDay(w http.ResponseWriter, r *http.Request) (tracker.Date, bool) {
	var req ToggleRequest
	if !decodeJSON(w, r, &req) {
		return tracker.Date{}, false
	}
	return h.parseDay(w, req.Date)
}

func (h *Handler) queryDay(w http.ResponseWriter, r *http.Request) (tracker.Date, bool) {
	return h.parseDay(w, r.URL.Query().Get("date"))
}

func (h *Handler) parseDay(w http.ResponseWriter, raw string) (tracker.Date, bool) {
	if raw == "" {
		return h.Clock.Today(), true
	}
	d, err := tracker.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return tracker.Date{}, false
	}
	return d, true
}

// periodQuery reads ?period= (default month) and ?value=.
func (h *Handler) periodQuery(w http.ResponseWriter, r *http.Request) (tracker.Period, bool) {
	kind := r.URL.Query().Get("period")
	if kind == "" {
		kind = "month"
	}
	p, err := tracker.ParsePeriod(kind, r.URL.Query().Get("value"), h.Clock.Today())
	if err != nil {
		writeDomainError(w, r, "Invalid period", err)
		return nil, false
	}
	return p, true
}

// formFile returns the named upload, or nil when it is optional and absent.
func formFile(w http.ResponseWriter, r *http.Request, name string, required bool) (multipart.File, bool) {
	f, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) && !required {
		return nil, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file "+strconv.Quote(name), err)
		return nil, false
	}
	return f, true
}
