package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/streak-engine/store/sqlite"
	"github.com/warp/streak-engine/tracker"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) tracker.Date {
	d, err := tracker.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func saveEntity(t *testing.T, s *sqlite.Store, e tracker.Entity) tracker.Entity {
	t.Helper()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	require.NoError(t, s.SaveEntity(context.Background(), &e))
	return e
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestSQLite_EntityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	created := time.Date(2025, 2, 3, 4, 5, 6, 789, time.UTC)
	e := saveEntity(t, s, tracker.Entity{OwnerID: owner, Title: `Say "hi"`, Active: true, SupportsSubItems: true, CreatedAt: created})
	require.NotZero(t, e.ID)

	got, err := s.GetEntity(ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, `Say "hi"`, got.Title)
	assert.True(t, got.Active)
	assert.True(t, got.SupportsSubItems)
	assert.Zero(t, got.ParentID)
	assert.True(t, created.Equal(got.CreatedAt))

	// Update in place
	got.Title = "Say hello"
	got.Active = false
	require.NoError(t, s.SaveEntity(ctx, &got))
	again, err := s.GetEntity(ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Say hello", again.Title)
	assert.False(t, again.Active)
}

func TestSQLite_GetEntity_OtherOwnerNotFound(t *testing.T) {
	s := newTestStore(t)
	e := saveEntity(t, s, tracker.Entity{OwnerID: uuid.New(), Title: "Run", Active: true})

	_, err := s.GetEntity(context.Background(), uuid.New(), e.ID)
	assert.True(t, tracker.IsNotFound(err))

	_, err = s.GetEntity(context.Background(), e.OwnerID, e.ID+100)
	assert.True(t, tracker.IsNotFound(err))
}

func TestSQLite_ListEntities_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	older := saveEntity(t, s, tracker.Entity{OwnerID: owner, Title: "Old", Active: true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	newer := saveEntity(t, s, tracker.Entity{OwnerID: owner, Title: "New", Active: true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	saveEntity(t, s, tracker.Entity{OwnerID: owner, Title: "Paused", Active: false})
	saveEntity(t, s, tracker.Entity{OwnerID: owner, ParentID: newer.ID, Title: "Child", Active: true})

	active, err := s.ListEntities(ctx, owner, tracker.EntityFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, newer.ID, active[0].ID)
	assert.Equal(t, older.ID, active[1].ID)

	all, err := s.ListEntities(ctx, owner, tracker.EntityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "sub-entities are not listed at owner level")

	children, err := s.ListSubEntities(ctx, newer.ID, tracker.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, newer.ID, children[0].ParentID)
	n, err := s.CountSubEntities(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// COMPLETIONS
// =============================================================================

func TestSQLite_UniqueCompletionPerDay(t *testing.T) {
	// GIVEN: A completion for (entity, 2025-03-10)
	// WHEN: Inserting the same pair again
	// THEN: The unique index surfaces as ErrDuplicateCompletion
	s := newTestStore(t)
	ctx := context.Background()
	e := saveEntity(t, s, tracker.Entity{OwnerID: uuid.New(), Title: "Run", Active: true})

	c := tracker.Completion{EntityID: e.ID, Date: day("2025-03-10"), CreatedAt: time.Now()}
	require.NoError(t, s.SaveCompletion(ctx, &c))
	assert.NotZero(t, c.ID)

	dup := tracker.Completion{EntityID: e.ID, Date: day("2025-03-10"), CreatedAt: time.Now()}
	assert.ErrorIs(t, s.SaveCompletion(ctx, &dup), tracker.ErrDuplicateCompletion)
}

func TestSQLite_CompletionQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()
	e := saveEntity(t, s, tracker.Entity{OwnerID: owner, Title: "Run", Active: true})
	child := saveEntity(t, s, tracker.Entity{OwnerID: owner, ParentID: e.ID, Title: "Warm-up", Active: true})

	for _, d := range []string{"2025-02-28", "2025-03-01", "2025-03-15", "2025-03-31"} {
		c := tracker.Completion{EntityID: e.ID, Date: day(d), CreatedAt: time.Now()}
		require.NoError(t, s.SaveCompletion(ctx, &c))
	}
	cc := tracker.Completion{EntityID: child.ID, Date: day("2025-03-15"), CreatedAt: time.Now()}
	require.NoError(t, s.SaveCompletion(ctx, &cc))

	march := tracker.Window{Start: day("2025-03-01"), End: day("2025-03-31")}

	n, err := s.CountCompletionsBetween(ctx, e.ID, march)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	total, err := s.CountCompletions(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	exists, err := s.CompletionExists(ctx, e.ID, day("2025-03-15"))
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := s.ListCompletions(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "2025-03-31", list[0].Date.String())
	assert.Equal(t, "2025-02-28", list[3].Date.String())

	owned, err := s.ListOwnerCompletions(ctx, owner, &march)
	require.NoError(t, err)
	assert.Len(t, owned, 3, "sub-entity completions excluded")

	kids, err := s.ListChildCompletions(ctx, e.ID, day("2025-03-15"))
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].EntityID)

	found, ok, err := s.FindCompletion(ctx, e.ID, day("2025-03-01"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.DeleteCompletion(ctx, found.ID))
	_, ok, err = s.FindCompletion(ctx, e.ID, day("2025-03-01"))
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := s.DeleteCompletionsByEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

// =============================================================================
// TRANSACTIONS AND ACCOUNTS
// =============================================================================

func TestSQLite_WithTx_Rollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx tracker.Store) error {
		e := tracker.Entity{OwnerID: owner, Title: "Ghost", Active: true, CreatedAt: time.Now()}
		require.NoError(t, tx.SaveEntity(ctx, &e))
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.ListEntities(ctx, owner, tracker.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLite_WithTx_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, s.WithTx(ctx, func(tx tracker.Store) error {
		e := tracker.Entity{OwnerID: owner, Title: "Kept", Active: true, CreatedAt: time.Now()}
		return tx.SaveEntity(ctx, &e)
	}))

	list, err := s.ListEntities(ctx, owner, tracker.EntityFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLite_EnsureAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	joined := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return joined }
	owner := uuid.New()

	a, err := s.EnsureAccount(ctx, owner)
	require.NoError(t, err)
	assert.True(t, joined.Equal(a.CreatedAt))

	s.Now = time.Now
	b, err := s.EnsureAccount(ctx, owner)
	require.NoError(t, err)
	assert.True(t, joined.Equal(b.CreatedAt))
}
