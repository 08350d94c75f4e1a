package analytics_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/warp/streak-engine/analytics"
	"github.com/warp/streak-engine/tracker"
)

func TestMonthOverMonth(t *testing.T) {
	tests := []struct {
		name              string
		current, previous int
		want              string
	}{
		{"previous zero is zero, not infinity", 5, 0, "0"},
		{"both zero", 0, 0, "0"},
		{"growth", 6, 4, "50"},
		{"drop", 2, 4, "-50"},
		{"rounded to two places", 1, 3, "-66.67"},
		{"thirds", 4, 3, "33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analytics.MonthOverMonth(tt.current, tt.previous).String())
		})
	}
}

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, "9.68", analytics.CompletionPercent(3, 31).String())
	assert.Equal(t, "66.67", analytics.CompletionPercent(2, 3).String())
	assert.Equal(t, "100", analytics.CompletionPercent(30, 30).String())
	assert.Equal(t, "0", analytics.CompletionPercent(3, 0).String())
	// Exactly half a cent rounds up
	assert.Equal(t, "0.13", analytics.CompletionPercent(1, 800).String())
}

func TestConsistencyPercent(t *testing.T) {
	today := d("2025-03-10")

	// GIVEN: Two entities created 10 days ago (inclusive), 5 completions
	// THEN: 5 / 20 days
	got := analytics.ConsistencyPercent(5, dates("2025-03-01", "2025-03-01"), today)
	assert.Equal(t, "25", got.String())

	// Entities created in the future add no days
	got = analytics.ConsistencyPercent(1, dates("2025-03-10", "2025-04-01"), today)
	assert.Equal(t, "100", got.String())

	assert.Equal(t, "0", analytics.ConsistencyPercent(0, nil, today).String())
}

func TestPerfectDays(t *testing.T) {
	owner := uuid.New()
	active := []tracker.Entity{
		{ID: 1, OwnerID: owner, Active: true},
		{ID: 2, OwnerID: owner, Active: true},
		{ID: 3, OwnerID: owner, Active: true},
	}
	completions := []tracker.Completion{
		// March 1: all three -> perfect
		{EntityID: 1, Date: d("2025-03-01")},
		{EntityID: 2, Date: d("2025-03-01")},
		{EntityID: 3, Date: d("2025-03-01")},
		// March 2: only two -> not perfect
		{EntityID: 1, Date: d("2025-03-02")},
		{EntityID: 2, Date: d("2025-03-02")},
		// March 3: two active plus an inactive one -> not perfect
		{EntityID: 1, Date: d("2025-03-03")},
		{EntityID: 2, Date: d("2025-03-03")},
		{EntityID: 9, Date: d("2025-03-03")},
	}

	assert.Equal(t, 1, analytics.PerfectDays(completions, active))
	assert.Equal(t, 0, analytics.PerfectDays(completions, nil), "no active entities, no perfect days")
}
