package tracker

import (
	"context"
	"fmt"
)

// SubEntityStatus reports whether one sub-entity was completed on a day.
type SubEntityStatus struct {
	ID        EntityID
	Title     string
	Completed bool
}

// CreateSubEntity adds a sub-entity under parent. The parent must allow
// sub-items and may hold at most MaxSubEntities of them.
func (s *Service) CreateSubEntity(ctx context.Context, owner OwnerID, parent EntityID, title string) (Entity, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return Entity{}, err
	}

	var child Entity
	err = s.Store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetEntity(ctx, owner, parent)
		if err != nil {
			return err
		}
		if p.IsSubEntity() {
			return entityNotFound(parent)
		}
		if !p.SupportsSubItems {
			return &ConflictError{Reason: fmt.Sprintf("entity %d does not allow sub-items", parent)}
		}
		n, err := tx.CountSubEntities(ctx, parent)
		if err != nil {
			return fmt.Errorf("count sub-entities of %d: %w", parent, err)
		}
		if n >= MaxSubEntities {
			return &ConflictError{Reason: fmt.Sprintf("entity %d already has %d sub-items", parent, MaxSubEntities)}
		}
		child = Entity{
			OwnerID:   owner,
			ParentID:  parent,
			Title:     title,
			Active:    true,
			CreatedAt: s.Clock.Instant().UTC(),
		}
		if err := tx.SaveEntity(ctx, &child); err != nil {
			return fmt.Errorf("create sub-entity: %w", err)
		}
		return nil
	})
	return child, err
}

// ListSubEntities returns parent's active sub-entities, newest first.
func (s *Service) ListSubEntities(ctx context.Context, owner OwnerID, parent EntityID) ([]Entity, error) {
	if _, err := s.GetEntity(ctx, owner, parent); err != nil {
		return nil, err
	}
	return s.Store.ListSubEntities(ctx, parent, EntityFilter{ActiveOnly: true})
}

// EditSubEntity renames a sub-entity.
func (s *Service) EditSubEntity(ctx context.Context, owner OwnerID, id EntityID, title string) (Entity, error) {
	e, err := s.getSubEntity(ctx, s.Store, owner, id)
	if err != nil {
		return Entity{}, err
	}
	if e.Title, err = cleanTitle(title); err != nil {
		return Entity{}, err
	}
	if err := s.Store.SaveEntity(ctx, &e); err != nil {
		return Entity{}, fmt.Errorf("edit sub-entity %d: %w", id, err)
	}
	return e, nil
}

// DeleteSubEntity removes a sub-entity and its completions.
func (s *Service) DeleteSubEntity(ctx context.Context, owner OwnerID, id EntityID) error {
	return s.Store.WithTx(ctx, func(tx Store) error {
		if _, err := s.getSubEntity(ctx, tx, owner, id); err != nil {
			return err
		}
		return deleteWithCompletions(ctx, tx, id)
	})
}

// ToggleSubEntity flips the completion state of (sub-entity, day).
func (s *Service) ToggleSubEntity(ctx context.Context, owner OwnerID, id EntityID, day Date) (bool, error) {
	var completed bool
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if _, err := s.getSubEntity(ctx, tx, owner, id); err != nil {
			return err
		}
		var err error
		completed, err = s.toggle(ctx, tx, id, day)
		return err
	})
	return completed, err
}

// SubEntityStatuses lists parent's active sub-entities with their
// completion state on day.
func (s *Service) SubEntityStatuses(ctx context.Context, owner OwnerID, parent EntityID, day Date) ([]SubEntityStatus, error) {
	children, err := s.ListSubEntities(ctx, owner, parent)
	if err != nil {
		return nil, err
	}
	done, err := s.Store.ListChildCompletions(ctx, parent, day)
	if err != nil {
		return nil, fmt.Errorf("list sub-item completions of %d: %w", parent, err)
	}
	completed := make(map[EntityID]bool, len(done))
	for _, c := range done {
		completed[c.EntityID] = true
	}

	out := make([]SubEntityStatus, 0, len(children))
	for _, c := range children {
		out = append(out, SubEntityStatus{ID: c.ID, Title: c.Title, Completed: completed[c.ID]})
	}
	return out, nil
}

func (s *Service) getSubEntity(ctx context.Context, st Store, owner OwnerID, id EntityID) (Entity, error) {
	e, err := st.GetEntity(ctx, owner, id)
	if err != nil {
		if IsNotFound(err) {
			return Entity{}, subEntityNotFound(id)
		}
		return Entity{}, err
	}
	if !e.IsSubEntity() {
		return Entity{}, subEntityNotFound(id)
	}
	return e, nil
}
