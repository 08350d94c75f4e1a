/*
Package tracker provides the core model for daily completion tracking.

PURPOSE:
  An owner tracks entities (habits, tasks) and marks each one completed
  or not on any calendar day. This package holds the types, the store
  contract, and the lifecycle operations (create, edit, delete, toggle).
  Analytics live in the analytics and insights packages; CSV transfer
  lives in csvio.

KEY CONCEPTS IN THIS FILE (types.go):
  - OwnerID: opaque owner identity, resolved outside this module
  - Entity: a tracked item, or a sub-entity when ParentID is set
  - Completion: "entity X was done on day D"

INVARIANTS:
  1. At most one Completion per (EntityID, Date), enforced by the store
  2. An entity's owner never changes after creation
  3. Completions are created or deleted, never updated

SEE ALSO:
  - store.go: Persistence contract
  - service.go: Lifecycle operations
  - date.go: Calendar date and clock
*/
package tracker

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OwnerID identifies the account that owns entities.
type OwnerID = uuid.UUID

type EntityID int64
type CompletionID int64

// ParseOwnerID parses the canonical uuid form.
func ParseOwnerID(s string) (OwnerID, error) {
	return uuid.Parse(s)
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is the owner record: identity plus when it was first seen.
type Account struct {
	ID        OwnerID
	CreatedAt time.Time
}

// =============================================================================
// ENTITY
// =============================================================================

// MaxSubEntities is how many sub-entities a single parent may hold.
const MaxSubEntities = 5

// Entity is a tracked item. When ParentID is non-zero it is a sub-entity
// scoped under that parent and invisible to owner-level queries.
type Entity struct {
	ID               EntityID
	OwnerID          OwnerID
	ParentID         EntityID
	Title            string
	Active           bool
	SupportsSubItems bool
	CreatedAt        time.Time
}

// IsSubEntity reports whether the entity hangs off a parent.
func (e Entity) IsSubEntity() bool { return e.ParentID != 0 }

// =============================================================================
// COMPLETION
// =============================================================================

// Completion marks an entity as done on one calendar day.
type Completion struct {
	ID        CompletionID
	EntityID  EntityID
	Date      Date
	CreatedAt time.Time
}

// Dates extracts the completion dates in input order.
func Dates(cs []Completion) []Date {
	out := make([]Date, len(cs))
	for i, c := range cs {
		out[i] = c.Date
	}
	return out
}
