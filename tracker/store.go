/*
store.go - Persistence interface for entities and completions

PURPOSE:
  Defines the interface between the tracker core and the database.
  Different implementations can use SQLite or in-memory storage.
  The core never walks an object graph: every relationship is an id
  resolved through these methods.

KEY INTERFACES:
  Store:        Entity + completion persistence
  TxStore:      Store plus scoped transactions for multi-step writes
  AccountStore: Owner records (creation timestamp for member-days)

UNIQUENESS:
  SaveCompletion MUST reject a second completion for the same
  (entity, date) with ErrDuplicateCompletion. Toggle relies on this to
  serialize concurrent toggles without its own locking.

OWNERSHIP:
  GetEntity takes the owner and returns a NotFoundError when the entity
  exists under another owner. There is no separate existence check.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - tracker/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: Uses TxStore for toggle, cascade delete
  - csvio: Uses TxStore for bulk import
*/
package tracker

import "context"

// =============================================================================
// STORE - Interface for entity and completion persistence
// =============================================================================

// EntityFilter narrows owner-level entity listings.
type EntityFilter struct {
	ActiveOnly bool
}

// Store handles persistence of entities and completions.
type Store interface {
	// GetEntity finds an entity (or sub-entity) by id, scoped to owner.
	// Returns a *NotFoundError if absent or owned by someone else.
	GetEntity(ctx context.Context, owner OwnerID, id EntityID) (Entity, error)

	// ListEntities returns the owner's top-level entities, newest first.
	ListEntities(ctx context.Context, owner OwnerID, filter EntityFilter) ([]Entity, error)

	// ListSubEntities returns the sub-entities of parent, newest first.
	ListSubEntities(ctx context.Context, parent EntityID, filter EntityFilter) ([]Entity, error)

	// CountSubEntities counts all sub-entities of parent.
	CountSubEntities(ctx context.Context, parent EntityID) (int, error)

	// SaveEntity inserts (ID == 0, assigns a new id) or updates in place.
	SaveEntity(ctx context.Context, e *Entity) error

	// DeleteEntity removes one entity row. Callers delete children first.
	DeleteEntity(ctx context.Context, id EntityID) error

	// SaveCompletion inserts a completion and assigns its id.
	// Returns ErrDuplicateCompletion if (entity, date) exists.
	SaveCompletion(ctx context.Context, c *Completion) error

	// DeleteCompletion removes one completion.
	DeleteCompletion(ctx context.Context, id CompletionID) error

	// DeleteCompletionsByEntity removes all completions of an entity.
	DeleteCompletionsByEntity(ctx context.Context, entity EntityID) (int, error)

	// FindCompletion returns the completion for (entity, date), found=false if absent.
	FindCompletion(ctx context.Context, entity EntityID, day Date) (c Completion, found bool, err error)

	// CompletionExists checks (entity, date).
	CompletionExists(ctx context.Context, entity EntityID, day Date) (bool, error)

	// CountCompletions counts all completions of an entity.
	CountCompletions(ctx context.Context, entity EntityID) (int, error)

	// CountCompletionsBetween counts completions of an entity in [from, to].
	CountCompletionsBetween(ctx context.Context, entity EntityID, w Window) (int, error)

	// ListCompletions returns an entity's completions, newest date first.
	ListCompletions(ctx context.Context, entity EntityID) ([]Completion, error)

	// ListCompletionsBetween returns an entity's completions in [from, to], newest first.
	ListCompletionsBetween(ctx context.Context, entity EntityID, w Window) ([]Completion, error)

	// ListOwnerCompletions returns completions of the owner's top-level
	// entities, optionally restricted to a window (nil = all time).
	ListOwnerCompletions(ctx context.Context, owner OwnerID, w *Window) ([]Completion, error)

	// ListChildCompletions returns completions of parent's sub-entities on day.
	ListChildCompletions(ctx context.Context, parent EntityID, day Date) ([]Completion, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
// Use this for toggle, cascade delete and bulk import.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountStore keeps one record per owner.
type AccountStore interface {
	// EnsureAccount returns the owner's record, creating it on first use.
	EnsureAccount(ctx context.Context, owner OwnerID) (Account, error)
}
