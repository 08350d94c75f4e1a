/*
handlers_test.go - HTTP tests for the API router

Tests for:
- Owner header resolution (401/400)
- Entity lifecycle and error status mapping
- Toggle, streak and insights endpoints
- Sub-item limit (409)
- CSV export and multipart import
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/streak-engine/api"
	"github.com/warp/streak-engine/csvio"
	"github.com/warp/streak-engine/tracker"
	"github.com/warp/streak-engine/tracker/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	owner  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	today, err := tracker.ParseDate("2025-03-10")
	require.NoError(t, err)
	h := api.NewHandler(store.NewMemory(), tracker.FixedClock(today), zerolog.Nop())
	return &testServer{
		router: api.NewRouter(h, []string{"http://localhost:3000"}),
		owner:  uuid.NewString(),
	}
}

func (s *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if s.owner != "" {
		req.Header.Set(api.OwnerHeader, s.owner)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) create(t *testing.T, title string, subItems bool) api.EntityDTO {
	t.Helper()
	rec := s.request(t, http.MethodPost, "/api/entities", api.CreateEntityRequest{Title: title, SupportsSubItems: subItems})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.EntityDTO](t, rec)
}

// =============================================================================
// OWNER RESOLUTION
// =============================================================================

func TestOwnerHeader(t *testing.T) {
	s := newTestServer(t)

	s.owner = ""
	rec := s.request(t, http.MethodGet, "/api/entities", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.owner = "not-a-uuid"
	rec = s.request(t, http.MethodGet, "/api/entities", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.owner = uuid.NewString()
	rec = s.request(t, http.MethodGet, "/api/entities", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealthz_NoOwnerNeeded(t *testing.T) {
	s := newTestServer(t)
	s.owner = ""

	rec := s.request(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestEntityLifecycle(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A created entity
	e := s.create(t, "  Read  ", false)
	assert.Equal(t, "Read", e.Title)
	assert.True(t, e.Active)
	assert.Nil(t, e.ParentID)

	// WHEN: Pausing it
	rec := s.request(t, http.MethodPatch, "/api/entities/"+itoa(e.ID), map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[api.EntityDTO](t, rec).Active)

	// THEN: It disappears from the active list
	rec = s.request(t, http.MethodGet, "/api/entities", nil)
	assert.Empty(t, decode[[]api.EntityDTO](t, rec))

	// AND: Deleting it makes it unreachable
	rec = s.request(t, http.MethodDelete, "/api/entities/"+itoa(e.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.request(t, http.MethodGet, "/api/entities/"+itoa(e.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEntity_BlankTitle(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodPost, "/api/entities", api.CreateEntityRequest{Title: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[api.ErrorResponse](t, rec).Error)
}

func TestGetEntity_OtherOwnerNotFound(t *testing.T) {
	s := newTestServer(t)
	e := s.create(t, "Mine", false)

	s.owner = uuid.NewString()
	rec := s.request(t, http.MethodGet, "/api/entities/"+itoa(e.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.request(t, http.MethodPost, "/api/entities/"+itoa(e.ID)+"/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEntity_BadID(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/entities/abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMPLETIONS AND ANALYTICS
// =============================================================================

func TestToggleAndStreak(t *testing.T) {
	s := newTestServer(t)
	e := s.create(t, "Run", false)
	base := "/api/entities/" + itoa(e.ID)

	// GIVEN: Yesterday marked explicitly, today toggled with no body
	rec := s.request(t, http.MethodPut, base+"/completions/2025-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.request(t, http.MethodPost, base+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	toggled := decode[api.ToggleResponse](t, rec)
	assert.True(t, toggled.Completed)
	assert.Equal(t, "2025-03-10", toggled.Date.String())

	// THEN: A two day streak ending today
	rec = s.request(t, http.MethodGet, base+"/streak", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[api.RunDTO](t, rec)
	assert.Equal(t, 2, run.Length)
	require.NotNil(t, run.Range)
	assert.Equal(t, "2025-03-09", run.Range.Start.String())

	// WHEN: Toggling today again
	rec = s.request(t, http.MethodPost, base+"/toggle", api.ToggleRequest{Date: "2025-03-10"})
	assert.False(t, decode[api.ToggleResponse](t, rec).Completed)

	// THEN: The streak is broken
	rec = s.request(t, http.MethodGet, base+"/streak", nil)
	assert.Equal(t, 0, decode[api.RunDTO](t, rec).Length)

	// Undo is idempotent
	for i := 0; i < 2; i++ {
		rec = s.request(t, http.MethodDelete, base+"/completions/2025-03-09", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestToggle_BadDate(t *testing.T) {
	s := newTestServer(t)
	e := s.create(t, "Run", false)

	rec := s.request(t, http.MethodPost, "/api/entities/"+itoa(e.ID)+"/toggle", api.ToggleRequest{Date: "10/03/2025"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntityStatsAndSummary(t *testing.T) {
	s := newTestServer(t)
	e := s.create(t, "Run", false)
	base := "/api/entities/" + itoa(e.ID)
	for _, day := range []string{"2025-03-01", "2025-03-05", "2025-03-10", "2025-02-01", "2025-02-02"} {
		require.Equal(t, http.StatusOK, s.request(t, http.MethodPut, base+"/completions/"+day, nil).Code)
	}

	rec := s.request(t, http.MethodGet, base+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[api.EntityStatsDTO](t, rec)
	assert.Equal(t, 3, stats.CompletedThisMonth)
	assert.Equal(t, 2, stats.CompletedPreviousMonth)
	assert.InDelta(t, 9.68, stats.MonthPercent, 1e-9)
	assert.InDelta(t, 50.0, stats.MonthOverMonth, 1e-9)

	rec = s.request(t, http.MethodGet, "/api/analytics/summary?period=year&value=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.SummaryResponse](t, rec)
	assert.Equal(t, "year:2025", summary.Period)
	require.Len(t, summary.Entities, 1)
	assert.Equal(t, 5, summary.Entities[0].Count)

	rec = s.request(t, http.MethodGet, "/api/analytics/summary?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.request(t, http.MethodGet, "/api/analytics/monthly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.MonthCountDTO](t, rec), 12)

	rec = s.request(t, http.MethodGet, "/api/analytics/trailing?entity="+itoa(e.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.MonthGroupDTO](t, rec), 12)
}

func TestInsights(t *testing.T) {
	s := newTestServer(t)

	// Empty account
	rec := s.request(t, http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[api.InsightsDTO](t, rec)
	assert.Nil(t, empty.HighestVolume)
	assert.Nil(t, empty.HighestStreak)

	e := s.create(t, "Run", false)
	require.Equal(t, http.StatusOK, s.request(t, http.MethodPost, "/api/entities/"+itoa(e.ID)+"/toggle", nil).Code)

	rec = s.request(t, http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.InsightsDTO](t, rec)
	assert.Equal(t, 1, got.TotalCompletions)
	assert.Equal(t, 1, got.PerfectDays)
	require.NotNil(t, got.HighestStreak)
	assert.Equal(t, e.ID, got.HighestStreak.EntityID)
}

// =============================================================================
// SUB-ITEMS
// =============================================================================

func TestSubItems(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: An entity without sub-item support
	plain := s.create(t, "Plain", false)
	rec := s.request(t, http.MethodPost, "/api/entities/"+itoa(plain.ID)+"/subitems", api.CreateSubItemRequest{Title: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// GIVEN: A container filled to the limit
	parent := s.create(t, "Workout", true)
	base := "/api/entities/" + itoa(parent.ID)
	var first api.EntityDTO
	for i := 0; i < 5; i++ {
		rec := s.request(t, http.MethodPost, base+"/subitems", api.CreateSubItemRequest{Title: "Set " + itoa(tracker.EntityID(i))})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if i == 0 {
			first = decode[api.EntityDTO](t, rec)
		}
	}

	// WHEN: Adding one more
	rec = s.request(t, http.MethodPost, base+"/subitems", api.CreateSubItemRequest{Title: "Set 6"})

	// THEN: Conflict
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: Toggling a sub-item shows up in the status for that day
	rec = s.request(t, http.MethodPost, "/api/subitems/"+itoa(first.ID)+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.request(t, http.MethodGet, base+"/subitems/status?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := decode[[]api.SubItemStatusDTO](t, rec)
	require.Len(t, statuses, 5)
	done := 0
	for _, st := range statuses {
		if st.Completed {
			done++
			assert.Equal(t, first.ID, st.ID)
		}
	}
	assert.Equal(t, 1, done)

	// Sub-items are not top-level entities
	rec = s.request(t, http.MethodGet, "/api/entities/"+itoa(first.ID)+"/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CSV
// =============================================================================

func TestExport_HeaderOnly(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/export/entities.csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, csvio.EntitiesHeader+"\n", rec.Body.String())
}

func TestImport_Multipart(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: An entities file and a completions file referencing old ids
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	writePart(t, mw, "entities", "entities.csv",
		"id,title,created_at,is_active,has_subtasks\n"+
			"7,\"Read\",2025-01-01T00:00:00Z,true,false\n"+
			"8,\"\",2025-01-01T00:00:00Z,true,false\n")
	writePart(t, mw, "completions", "completions.csv",
		"id,task_id,completed_date,created_at\n"+
			"1,7,2025-03-09,\n"+
			"2,7,2025-03-10,\n"+
			"3,8,2025-03-10,\n")
	require.NoError(t, mw.Close())

	// WHEN: Uploading both
	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.OwnerHeader, s.owner)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	// THEN: One entity, two completions, one skip per file
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.ImportResponse](t, rec)
	assert.Equal(t, 1, res.EntitiesCreated)
	require.Len(t, res.EntitiesSkipped, 1)
	assert.Equal(t, 3, res.EntitiesSkipped[0].Line)
	assert.Equal(t, 2, res.CompletionsCreated)
	assert.Len(t, res.CompletionsSkipped, 1)
	newID, ok := res.Remap[7]
	require.True(t, ok)

	rec = s.request(t, http.MethodGet, "/api/entities/"+itoa(newID)+"/streak", nil)
	assert.Equal(t, 2, decode[api.RunDTO](t, rec).Length)
}

func TestImport_CompletionsErrorKeepsRemap(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: A valid entities file and a completions file without a task id column
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	writePart(t, mw, "entities", "entities.csv", "id,title\n7,\"Read\"\n")
	writePart(t, mw, "completions", "completions.csv", "id,completed_date\n1,2025-03-09\n")
	require.NoError(t, mw.Close())

	// WHEN: Uploading both
	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.OwnerHeader, s.owner)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	// THEN: The completions failure is reported alongside the committed entities
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	res := decode[api.ImportResponse](t, rec)
	assert.Equal(t, 1, res.EntitiesCreated)
	assert.Zero(t, res.CompletionsCreated)
	assert.NotEmpty(t, res.CompletionsError)
	newID, ok := res.Remap[7]
	require.True(t, ok)

	// AND: The entity exists, so the completions can be retried with the remap
	rec = s.request(t, http.MethodGet, "/api/entities/"+itoa(newID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Read", decode[api.EntityDTO](t, rec).Title)
}

func TestImport_MissingEntitiesFile(t *testing.T) {
	s := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "nothing"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.OwnerHeader, s.owner)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func writePart(t *testing.T, mw *multipart.Writer, field, filename, content string) {
	t.Helper()
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.request(t, http.MethodGet, "/api/entities", nil)

	s.owner = ""
	rec := s.request(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "streaks_http_requests_total")
}

func itoa(id tracker.EntityID) string {
	return strconv.FormatInt(int64(id), 10)
}
