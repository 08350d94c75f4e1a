/*
service.go - Entity lifecycle: create, edit, delete, toggle

PURPOSE:
  The only write path for entities and completions outside CSV import.
  Every operation takes the owner explicitly; there is no ambient user.

TRANSACTIONS:
  Multi-step writes run inside TxStore.WithTx:
  - Toggle:        exists? -> delete : insert
  - DeleteEntity:  sub-entity completions, sub-entities, completions, entity
  Single-row writes (create, edit) go straight to the store.

TOGGLE:
  Toggle is involutive: two toggles on the same (entity, date) restore the
  original state. A concurrent toggle that loses the insert race hits the
  store's uniqueness constraint and surfaces as a ConflictError.
  MarkCompleted losing the same race returns nil.

SEE ALSO:
  - subentity.go: Same operations one level down
  - store.go: Store contract
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service runs lifecycle operations against a TxStore.
type Service struct {
	Store TxStore
	Clock Clock
	Log   zerolog.Logger
}

// NewService creates a service using the system clock in UTC.
func NewService(store TxStore) *Service {
	return &Service{Store: store, Clock: SystemClock(nil), Log: zerolog.Nop()}
}

// EntityPatch carries optional edits. Nil fields are left unchanged.
type EntityPatch struct {
	Title            *string
	SupportsSubItems *bool
	Active           *bool
}

// =============================================================================
// ENTITIES
// =============================================================================

// ListEntities returns the owner's active entities, newest first.
func (s *Service) ListEntities(ctx context.Context, owner OwnerID) ([]Entity, error) {
	return s.Store.ListEntities(ctx, owner, EntityFilter{ActiveOnly: true})
}

// GetEntity returns one of the owner's entities.
func (s *Service) GetEntity(ctx context.Context, owner OwnerID, id EntityID) (Entity, error) {
	e, err := s.Store.GetEntity(ctx, owner, id)
	if err != nil {
		return Entity{}, err
	}
	if e.IsSubEntity() {
		return Entity{}, entityNotFound(id)
	}
	return e, nil
}

// CreateEntity creates an active top-level entity.
func (s *Service) CreateEntity(ctx context.Context, owner OwnerID, title string, supportsSubItems bool) (Entity, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return Entity{}, err
	}
	e := Entity{
		OwnerID:          owner,
		Title:            title,
		Active:           true,
		SupportsSubItems: supportsSubItems,
		CreatedAt:        s.Clock.Instant().UTC(),
	}
	if err := s.Store.SaveEntity(ctx, &e); err != nil {
		return Entity{}, fmt.Errorf("create entity: %w", err)
	}
	return e, nil
}

// EditEntity applies a patch in place. A provided title must be non-blank.
func (s *Service) EditEntity(ctx context.Context, owner OwnerID, id EntityID, patch EntityPatch) (Entity, error) {
	e, err := s.GetEntity(ctx, owner, id)
	if err != nil {
		return Entity{}, err
	}
	if patch.Title != nil {
		title, err := cleanTitle(*patch.Title)
		if err != nil {
			return Entity{}, err
		}
		e.Title = title
	}
	if patch.SupportsSubItems != nil {
		e.SupportsSubItems = *patch.SupportsSubItems
	}
	if patch.Active != nil {
		e.Active = *patch.Active
	}
	if err := s.Store.SaveEntity(ctx, &e); err != nil {
		return Entity{}, fmt.Errorf("edit entity %d: %w", id, err)
	}
	return e, nil
}

// DeleteEntity removes the entity, its sub-entities and every completion
// beneath it, in one transaction.
func (s *Service) DeleteEntity(ctx context.Context, owner OwnerID, id EntityID) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		e, err := tx.GetEntity(ctx, owner, id)
		if err != nil {
			return err
		}
		if e.IsSubEntity() {
			return entityNotFound(id)
		}

		children, err := tx.ListSubEntities(ctx, id, EntityFilter{})
		if err != nil {
			return fmt.Errorf("list sub-entities of %d: %w", id, err)
		}
		for _, child := range children {
			if err := deleteWithCompletions(ctx, tx, child.ID); err != nil {
				return err
			}
		}
		if err := deleteWithCompletions(ctx, tx, id); err != nil {
			return err
		}
		s.Log.Info().Int64("entity", int64(id)).Int("sub_entities", len(children)).Msg("entity deleted")
		return nil
	})
}

func deleteWithCompletions(ctx context.Context, tx Store, id EntityID) error {
	if _, err := tx.DeleteCompletionsByEntity(ctx, id); err != nil {
		return fmt.Errorf("delete completions of %d: %w", id, err)
	}
	if err := tx.DeleteEntity(ctx, id); err != nil {
		return fmt.Errorf("delete entity %d: %w", id, err)
	}
	return nil
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// Toggle flips the completion state of (entity, day) and reports the new
// state: true when the day is now completed.
func (s *Service) Toggle(ctx context.Context, owner OwnerID, id EntityID, day Date) (bool, error) {
	var completed bool
	err := s.Store.WithTx(ctx, func(tx Store) error {
		e, err := tx.GetEntity(ctx, owner, id)
		if err != nil {
			return err
		}
		if e.IsSubEntity() {
			return entityNotFound(id)
		}
		completed, err = s.toggle(ctx, tx, id, day)
		return err
	})
	return completed, err
}

// MarkCompleted creates the completion if absent. Idempotent.
func (s *Service) MarkCompleted(ctx context.Context, owner OwnerID, id EntityID, day Date) error {
	if _, err := s.GetEntity(ctx, owner, id); err != nil {
		return err
	}
	err := s.mark(ctx, s.Store, id, day)
	if errors.Is(err, ErrDuplicateCompletion) {
		// Lost the insert race: the day is completed either way.
		return nil
	}
	return err
}

// UndoCompleted deletes the completion if present. Idempotent.
func (s *Service) UndoCompleted(ctx context.Context, owner OwnerID, id EntityID, day Date) error {
	if _, err := s.GetEntity(ctx, owner, id); err != nil {
		return err
	}
	return s.undo(ctx, s.Store, id, day)
}

func (s *Service) toggle(ctx context.Context, tx Store, id EntityID, day Date) (bool, error) {
	exists, err := tx.CompletionExists(ctx, id, day)
	if err != nil {
		return false, fmt.Errorf("check completion %d@%s: %w", id, day, err)
	}
	if exists {
		return false, s.undo(ctx, tx, id, day)
	}
	return true, s.mark(ctx, tx, id, day)
}

func (s *Service) mark(ctx context.Context, st Store, id EntityID, day Date) error {
	exists, err := st.CompletionExists(ctx, id, day)
	if err != nil {
		return fmt.Errorf("check completion %d@%s: %w", id, day, err)
	}
	if exists {
		return nil
	}
	c := Completion{EntityID: id, Date: day, CreatedAt: s.Clock.Instant().UTC()}
	if err := st.SaveCompletion(ctx, &c); err != nil {
		if errors.Is(err, ErrDuplicateCompletion) {
			return &ConflictError{Reason: fmt.Sprintf("completion for %s already recorded", day), Err: err}
		}
		return fmt.Errorf("save completion %d@%s: %w", id, day, err)
	}
	return nil
}

func (s *Service) undo(ctx context.Context, st Store, id EntityID, day Date) error {
	c, found, err := st.FindCompletion(ctx, id, day)
	if err != nil {
		return fmt.Errorf("find completion %d@%s: %w", id, day, err)
	}
	if !found {
		return nil
	}
	if err := st.DeleteCompletion(ctx, c.ID); err != nil {
		return fmt.Errorf("delete completion %d: %w", c.ID, err)
	}
	return nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "must not be empty"}
	}
	// Exports write one entity per line.
	if strings.ContainsAny(title, "\r\n") {
		return "", &ValidationError{Field: "title", Message: "must be a single line"}
	}
	return title, nil
}
