// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/streak-engine/tracker"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements tracker.TxStore and tracker.AccountStore in memory.
type Memory struct {
	mu sync.RWMutex
	st state

	// Now stamps new accounts. Defaults to time.Now.
	Now func() time.Time
}

type dayKey struct {
	Entity tracker.EntityID
	Day    string
}

type state struct {
	entities       map[tracker.EntityID]tracker.Entity
	completions    map[tracker.CompletionID]tracker.Completion
	byDay          map[dayKey]tracker.CompletionID
	accounts       map[tracker.OwnerID]tracker.Account
	nextEntity     tracker.EntityID
	nextCompletion tracker.CompletionID
}

func NewMemory() *Memory {
	return &Memory{
		st: state{
			entities:    make(map[tracker.EntityID]tracker.Entity),
			completions: make(map[tracker.CompletionID]tracker.Completion),
			byDay:       make(map[dayKey]tracker.CompletionID),
			accounts:    make(map[tracker.OwnerID]tracker.Account),
		},
		Now: time.Now,
	}
}

// =============================================================================
// LOCKED API (tracker.Store)
// =============================================================================

func (m *Memory) GetEntity(_ context.Context, owner tracker.OwnerID, id tracker.EntityID) (tracker.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getEntity(owner, id)
}

func (m *Memory) ListEntities(_ context.Context, owner tracker.OwnerID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listEntities(owner, f), nil
}

func (m *Memory) ListSubEntities(_ context.Context, parent tracker.EntityID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listSubEntities(parent, f), nil
}

func (m *Memory) CountSubEntities(_ context.Context, parent tracker.EntityID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.listSubEntities(parent, tracker.EntityFilter{})), nil
}

func (m *Memory) SaveEntity(_ context.Context, e *tracker.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveEntity(e)
}

func (m *Memory) DeleteEntity(_ context.Context, id tracker.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.st.entities, id)
	return nil
}

func (m *Memory) SaveCompletion(_ context.Context, c *tracker.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveCompletion(c)
}

func (m *Memory) DeleteCompletion(_ context.Context, id tracker.CompletionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.deleteCompletion(id)
	return nil
}

func (m *Memory) DeleteCompletionsByEntity(_ context.Context, entity tracker.EntityID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteByEntity(entity), nil
}

func (m *Memory) FindCompletion(_ context.Context, entity tracker.EntityID, day tracker.Date) (tracker.Completion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.st.find(entity, day)
	return c, ok, nil
}

func (m *Memory) CompletionExists(_ context.Context, entity tracker.EntityID, day tracker.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.st.find(entity, day)
	return ok, nil
}

func (m *Memory) CountCompletions(_ context.Context, entity tracker.EntityID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.completionsOf(entity, nil)), nil
}

func (m *Memory) CountCompletionsBetween(_ context.Context, entity tracker.EntityID, w tracker.Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.completionsOf(entity, &w)), nil
}

func (m *Memory) ListCompletions(_ context.Context, entity tracker.EntityID) ([]tracker.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.completionsOf(entity, nil), nil
}

func (m *Memory) ListCompletionsBetween(_ context.Context, entity tracker.EntityID, w tracker.Window) ([]tracker.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.completionsOf(entity, &w), nil
}

func (m *Memory) ListOwnerCompletions(_ context.Context, owner tracker.OwnerID, w *tracker.Window) ([]tracker.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ownerCompletions(owner, w), nil
}

func (m *Memory) ListChildCompletions(_ context.Context, parent tracker.EntityID, day tracker.Date) ([]tracker.Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.childCompletions(parent, day), nil
}

// EnsureAccount implements tracker.AccountStore.
func (m *Memory) EnsureAccount(_ context.Context, owner tracker.OwnerID) (tracker.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.st.accounts[owner]; ok {
		return a, nil
	}
	a := tracker.Account{ID: owner, CreatedAt: m.Now().UTC()}
	m.st.accounts[owner] = a
	return a, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(tracker.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// txView runs against state while WithTx holds the write lock.
type txView struct {
	st *state
}

func (v *txView) GetEntity(_ context.Context, owner tracker.OwnerID, id tracker.EntityID) (tracker.Entity, error) {
	return v.st.getEntity(owner, id)
}

func (v *txView) ListEntities(_ context.Context, owner tracker.OwnerID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	return v.st.listEntities(owner, f), nil
}

func (v *txView) ListSubEntities(_ context.Context, parent tracker.EntityID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	return v.st.listSubEntities(parent, f), nil
}

func (v *txView) CountSubEntities(_ context.Context, parent tracker.EntityID) (int, error) {
	return len(v.st.listSubEntities(parent, tracker.EntityFilter{})), nil
}

func (v *txView) SaveEntity(_ context.Context, e *tracker.Entity) error {
	return v.st.saveEntity(e)
}

func (v *txView) DeleteEntity(_ context.Context, id tracker.EntityID) error {
	delete(v.st.entities, id)
	return nil
}

func (v *txView) SaveCompletion(_ context.Context, c *tracker.Completion) error {
	return v.st.saveCompletion(c)
}

func (v *txView) DeleteCompletion(_ context.Context, id tracker.CompletionID) error {
	v.st.deleteCompletion(id)
	return nil
}

func (v *txView) DeleteCompletionsByEntity(_ context.Context, entity tracker.EntityID) (int, error) {
	return v.st.deleteByEntity(entity), nil
}

func (v *txView) FindCompletion(_ context.Context, entity tracker.EntityID, day tracker.Date) (tracker.Completion, bool, error) {
	c, ok := v.st.find(entity, day)
	return c, ok, nil
}

func (v *txView) CompletionExists(_ context.Context, entity tracker.EntityID, day tracker.Date) (bool, error) {
	_, ok := v.st.find(entity, day)
	return ok, nil
}

func (v *txView) CountCompletions(_ context.Context, entity tracker.EntityID) (int, error) {
	return len(v.st.completionsOf(entity, nil)), nil
}

func (v *txView) CountCompletionsBetween(_ context.Context, entity tracker.EntityID, w tracker.Window) (int, error) {
	return len(v.st.completionsOf(entity, &w)), nil
}

func (v *txView) ListCompletions(_ context.Context, entity tracker.EntityID) ([]tracker.Completion, error) {
	return v.st.completionsOf(entity, nil), nil
}

func (v *txView) ListCompletionsBetween(_ context.Context, entity tracker.EntityID, w tracker.Window) ([]tracker.Completion, error) {
	return v.st.completionsOf(entity, &w), nil
}

func (v *txView) ListOwnerCompletions(_ context.Context, owner tracker.OwnerID, w *tracker.Window) ([]tracker.Completion, error) {
	return v.st.ownerCompletions(owner, w), nil
}

func (v *txView) ListChildCompletions(_ context.Context, parent tracker.EntityID, day tracker.Date) ([]tracker.Completion, error) {
	return v.st.childCompletions(parent, day), nil
}

// =============================================================================
// STATE (callers hold the lock)
// =============================================================================

func (s *state) clone() state {
	c := state{
		entities:       make(map[tracker.EntityID]tracker.Entity, len(s.entities)),
		completions:    make(map[tracker.CompletionID]tracker.Completion, len(s.completions)),
		byDay:          make(map[dayKey]tracker.CompletionID, len(s.byDay)),
		accounts:       make(map[tracker.OwnerID]tracker.Account, len(s.accounts)),
		nextEntity:     s.nextEntity,
		nextCompletion: s.nextCompletion,
	}
	for k, v := range s.entities {
		c.entities[k] = v
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	for k, v := range s.byDay {
		c.byDay[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	return c
}

func (s *state) getEntity(owner tracker.OwnerID, id tracker.EntityID) (tracker.Entity, error) {
	e, ok := s.entities[id]
	if !ok || e.OwnerID != owner {
		return tracker.Entity{}, &tracker.NotFoundError{Kind: "entity", ID: int64(id)}
	}
	return e, nil
}

func (s *state) listEntities(owner tracker.OwnerID, f tracker.EntityFilter) []tracker.Entity {
	var out []tracker.Entity
	for _, e := range s.entities {
		if e.OwnerID == owner && !e.IsSubEntity() && (!f.ActiveOnly || e.Active) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

func (s *state) listSubEntities(parent tracker.EntityID, f tracker.EntityFilter) []tracker.Entity {
	var out []tracker.Entity
	for _, e := range s.entities {
		if e.ParentID == parent && (!f.ActiveOnly || e.Active) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

func (s *state) saveEntity(e *tracker.Entity) error {
	if e.ID == 0 {
		s.nextEntity++
		e.ID = s.nextEntity
	}
	s.entities[e.ID] = *e
	return nil
}

func (s *state) saveCompletion(c *tracker.Completion) error {
	k := dayKey{Entity: c.EntityID, Day: c.Date.String()}
	if _, ok := s.byDay[k]; ok {
		return tracker.ErrDuplicateCompletion
	}
	s.nextCompletion++
	c.ID = s.nextCompletion
	s.completions[c.ID] = *c
	s.byDay[k] = c.ID
	return nil
}

func (s *state) deleteCompletion(id tracker.CompletionID) {
	c, ok := s.completions[id]
	if !ok {
		return
	}
	delete(s.byDay, dayKey{Entity: c.EntityID, Day: c.Date.String()})
	delete(s.completions, id)
}

func (s *state) deleteByEntity(entity tracker.EntityID) int {
	n := 0
	for id, c := range s.completions {
		if c.EntityID == entity {
			s.deleteCompletion(id)
			n++
		}
	}
	return n
}

func (s *state) find(entity tracker.EntityID, day tracker.Date) (tracker.Completion, bool) {
	id, ok := s.byDay[dayKey{Entity: entity, Day: day.String()}]
	if !ok {
		return tracker.Completion{}, false
	}
	return s.completions[id], true
}

func (s *state) completionsOf(entity tracker.EntityID, w *tracker.Window) []tracker.Completion {
	var out []tracker.Completion
	for _, c := range s.completions {
		if c.EntityID == entity && (w == nil || w.Contains(c.Date)) {
			out = append(out, c)
		}
	}
	sortNewestDateFirst(out)
	return out
}

func (s *state) ownerCompletions(owner tracker.OwnerID, w *tracker.Window) []tracker.Completion {
	var out []tracker.Completion
	for _, c := range s.completions {
		e, ok := s.entities[c.EntityID]
		if !ok || e.OwnerID != owner || e.IsSubEntity() {
			continue
		}
		if w == nil || w.Contains(c.Date) {
			out = append(out, c)
		}
	}
	sortNewestDateFirst(out)
	return out
}

func (s *state) childCompletions(parent tracker.EntityID, day tracker.Date) []tracker.Completion {
	var out []tracker.Completion
	for _, c := range s.completions {
		if !c.Date.Equal(day) {
			continue
		}
		if e, ok := s.entities[c.EntityID]; ok && e.ParentID == parent {
			out = append(out, c)
		}
	}
	sortNewestDateFirst(out)
	return out
}

func sortNewestFirst(es []tracker.Entity) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.After(es[j].CreatedAt)
		}
		return es[i].ID > es[j].ID
	})
}

func sortNewestDateFirst(cs []tracker.Completion) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].Date.Equal(cs[j].Date) {
			return cs[i].Date.After(cs[j].Date)
		}
		return cs[i].ID < cs[j].ID
	})
}
