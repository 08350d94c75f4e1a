/*
Package sqlite provides a SQLite-backed implementation of the tracker stores.

PURPOSE:
  Implements tracker.TxStore and tracker.AccountStore on SQLite via sqlx.
  Schema lives in migrations/*.sql and is applied with goose on New().

KEY TABLES:
  accounts:    One row per owner (first-seen timestamp)
  entities:    Tracked entities; sub-entities carry parent_id
  completions: One row per (entity, day)

INDEXES:
  - idx_unique_completion_day: Enforces the one-completion-per-day invariant
  - idx_entities_owner:        Owner listings (hot path for every rollup)
  - idx_completions_date:      Window scans for histograms

CONCURRENCY:
  The pool is capped at one connection. SQLite allows a single writer
  anyway, and this keeps ":memory:" databases on one connection. Inside
  WithTx every call goes through the *sqlx.Tx, never the pool.

USAGE:
  store, err := sqlite.New("./data/streaks.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer store.Close()

SEE ALSO:
  - tracker/store.go: Interface definitions
  - tracker/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/streak-engine/tracker"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the tracker storage interfaces using SQLite.
type Store struct {
	runner
	db *sqlx.DB

	// Now stamps new accounts. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{runner: runner{q: db}, db: db, Now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (tracker.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tracker.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{runner: runner{q: tx}}); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	runner
}

// =============================================================================
// ACCOUNTS (tracker.AccountStore interface)
// =============================================================================

// EnsureAccount returns the owner's record, inserting it on first use.
func (s *Store) EnsureAccount(ctx context.Context, owner tracker.OwnerID) (tracker.Account, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		owner.String(), now().UTC().Format(timeLayout),
	)
	if err != nil {
		return tracker.Account{}, fmt.Errorf("failed to ensure account: %w", err)
	}

	var createdAt string
	if err := s.db.GetContext(ctx, &createdAt, "SELECT created_at FROM accounts WHERE id = ?", owner.String()); err != nil {
		return tracker.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return tracker.Account{}, fmt.Errorf("account %s: %w", owner, err)
	}
	return tracker.Account{ID: owner, CreatedAt: created}, nil
}

// =============================================================================
// RUNNER - Queries shared by the pool and a transaction
// =============================================================================

type runner struct {
	q sqlx.ExtContext
}

type entityRow struct {
	ID               int64         `db:"id"`
	OwnerID          string        `db:"owner_id"`
	ParentID         sql.NullInt64 `db:"parent_id"`
	Title            string        `db:"title"`
	IsActive         bool          `db:"is_active"`
	SupportsSubItems bool          `db:"supports_sub_items"`
	CreatedAt        string        `db:"created_at"`
}

const entityColumns = `id, owner_id, parent_id, title, is_active, supports_sub_items, created_at`

func (r entityRow) toEntity() (tracker.Entity, error) {
	owner, err := tracker.ParseOwnerID(r.OwnerID)
	if err != nil {
		return tracker.Entity{}, fmt.Errorf("entity %d has bad owner id: %w", r.ID, err)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return tracker.Entity{}, fmt.Errorf("entity %d: %w", r.ID, err)
	}
	return tracker.Entity{
		ID:               tracker.EntityID(r.ID),
		OwnerID:          owner,
		ParentID:         tracker.EntityID(r.ParentID.Int64),
		Title:            r.Title,
		Active:           r.IsActive,
		SupportsSubItems: r.SupportsSubItems,
		CreatedAt:        created,
	}, nil
}

type completionRow struct {
	ID            int64  `db:"id"`
	EntityID      int64  `db:"entity_id"`
	CompletedDate string `db:"completed_date"`
	CreatedAt     string `db:"created_at"`
}

const completionColumns = `c.id, c.entity_id, c.completed_date, c.created_at`

func (r completionRow) toCompletion() (tracker.Completion, error) {
	day, err := tracker.ParseDate(r.CompletedDate)
	if err != nil {
		return tracker.Completion{}, fmt.Errorf("completion %d: %w", r.ID, err)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return tracker.Completion{}, fmt.Errorf("completion %d: %w", r.ID, err)
	}
	return tracker.Completion{
		ID:        tracker.CompletionID(r.ID),
		EntityID:  tracker.EntityID(r.EntityID),
		Date:      day,
		CreatedAt: created,
	}, nil
}

// GetEntity retrieves an entity by id, scoped to its owner.
func (r runner) GetEntity(ctx context.Context, owner tracker.OwnerID, id tracker.EntityID) (tracker.Entity, error) {
	var row entityRow
	err := sqlx.GetContext(ctx, r.q, &row,
		"SELECT "+entityColumns+" FROM entities WHERE id = ? AND owner_id = ?",
		int64(id), owner.String(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Entity{}, &tracker.NotFoundError{Kind: "entity", ID: int64(id)}
	}
	if err != nil {
		return tracker.Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}
	return row.toEntity()
}

// ListEntities returns the owner's top-level entities, newest first.
func (r runner) ListEntities(ctx context.Context, owner tracker.OwnerID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE owner_id = ? AND parent_id IS NULL"
	if f.ActiveOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY created_at DESC, id DESC"
	return r.queryEntities(ctx, query, owner.String())
}

// ListSubEntities returns parent's sub-entities, newest first.
func (r runner) ListSubEntities(ctx context.Context, parent tracker.EntityID, f tracker.EntityFilter) ([]tracker.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE parent_id = ?"
	if f.ActiveOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY created_at DESC, id DESC"
	return r.queryEntities(ctx, query, int64(parent))
}

func (r runner) queryEntities(ctx context.Context, query string, args ...any) ([]tracker.Entity, error) {
	var rows []entityRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	entities := make([]tracker.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// CountSubEntities counts parent's sub-entities.
func (r runner) CountSubEntities(ctx context.Context, parent tracker.EntityID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM entities WHERE parent_id = ?", int64(parent))
	return n, err
}

// SaveEntity inserts a new entity or updates the mutable columns of an
// existing one. Owner and parent are fixed at insert.
func (r runner) SaveEntity(ctx context.Context, e *tracker.Entity) error {
	if e.ID != 0 {
		_, err := r.q.ExecContext(ctx,
			"UPDATE entities SET title = ?, is_active = ?, supports_sub_items = ? WHERE id = ?",
			e.Title, e.Active, e.SupportsSubItems, int64(e.ID),
		)
		if err != nil {
			return fmt.Errorf("failed to update entity: %w", err)
		}
		return nil
	}

	var parent sql.NullInt64
	if e.ParentID != 0 {
		parent = sql.NullInt64{Int64: int64(e.ParentID), Valid: true}
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO entities (owner_id, parent_id, title, is_active, supports_sub_items, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.OwnerID.String(), parent, e.Title, e.Active, e.SupportsSubItems,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read entity id: %w", err)
	}
	e.ID = tracker.EntityID(id)
	return nil
}

// DeleteEntity removes one entity row.
func (r runner) DeleteEntity(ctx context.Context, id tracker.EntityID) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", int64(id))
	return err
}

// SaveCompletion inserts a completion.
func (r runner) SaveCompletion(ctx context.Context, c *tracker.Completion) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO completions (entity_id, completed_date, created_at) VALUES (?, ?, ?)",
		int64(c.EntityID), c.Date.String(), c.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return tracker.ErrDuplicateCompletion
		}
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read completion id: %w", err)
	}
	c.ID = tracker.CompletionID(id)
	return nil
}

// DeleteCompletion removes one completion.
func (r runner) DeleteCompletion(ctx context.Context, id tracker.CompletionID) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM completions WHERE id = ?", int64(id))
	return err
}

// DeleteCompletionsByEntity removes all completions of an entity.
func (r runner) DeleteCompletionsByEntity(ctx context.Context, entity tracker.EntityID) (int, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM completions WHERE entity_id = ?", int64(entity))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// FindCompletion looks up (entity, day).
func (r runner) FindCompletion(ctx context.Context, entity tracker.EntityID, day tracker.Date) (tracker.Completion, bool, error) {
	var row completionRow
	err := sqlx.GetContext(ctx, r.q, &row,
		"SELECT "+completionColumns+" FROM completions c WHERE c.entity_id = ? AND c.completed_date = ?",
		int64(entity), day.String(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Completion{}, false, nil
	}
	if err != nil {
		return tracker.Completion{}, false, fmt.Errorf("failed to find completion: %w", err)
	}
	c, err := row.toCompletion()
	return c, err == nil, err
}

// CompletionExists checks (entity, day).
func (r runner) CompletionExists(ctx context.Context, entity tracker.EntityID, day tracker.Date) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		"SELECT COUNT(*) FROM completions WHERE entity_id = ? AND completed_date = ?",
		int64(entity), day.String(),
	)
	return n > 0, err
}

// CountCompletions counts all completions of an entity.
func (r runner) CountCompletions(ctx context.Context, entity tracker.EntityID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, "SELECT COUNT(*) FROM completions WHERE entity_id = ?", int64(entity))
	return n, err
}

// CountCompletionsBetween counts an entity's completions in the window.
func (r runner) CountCompletionsBetween(ctx context.Context, entity tracker.EntityID, w tracker.Window) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		"SELECT COUNT(*) FROM completions WHERE entity_id = ? AND completed_date BETWEEN ? AND ?",
		int64(entity), w.Start.String(), w.End.String(),
	)
	return n, err
}

// ListCompletions returns an entity's completions, newest date first.
func (r runner) ListCompletions(ctx context.Context, entity tracker.EntityID) ([]tracker.Completion, error) {
	return r.queryCompletions(ctx,
		"SELECT "+completionColumns+" FROM completions c WHERE c.entity_id = ? ORDER BY c.completed_date DESC",
		int64(entity),
	)
}

// ListCompletionsBetween returns an entity's completions in the window, newest first.
func (r runner) ListCompletionsBetween(ctx context.Context, entity tracker.EntityID, w tracker.Window) ([]tracker.Completion, error) {
	return r.queryCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions c
		WHERE c.entity_id = ? AND c.completed_date BETWEEN ? AND ?
		ORDER BY c.completed_date DESC`,
		int64(entity), w.Start.String(), w.End.String(),
	)
}

// ListOwnerCompletions returns completions across the owner's top-level entities.
func (r runner) ListOwnerCompletions(ctx context.Context, owner tracker.OwnerID, w *tracker.Window) ([]tracker.Completion, error) {
	var b strings.Builder
	b.WriteString("SELECT " + completionColumns + ` FROM completions c
		JOIN entities e ON e.id = c.entity_id
		WHERE e.owner_id = ? AND e.parent_id IS NULL`)
	args := []any{owner.String()}
	if w != nil {
		b.WriteString(" AND c.completed_date BETWEEN ? AND ?")
		args = append(args, w.Start.String(), w.End.String())
	}
	b.WriteString(" ORDER BY c.completed_date DESC, c.id ASC")
	return r.queryCompletions(ctx, b.String(), args...)
}

// ListChildCompletions returns completions of parent's sub-entities on day.
func (r runner) ListChildCompletions(ctx context.Context, parent tracker.EntityID, day tracker.Date) ([]tracker.Completion, error) {
	return r.queryCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions c
		JOIN entities e ON e.id = c.entity_id
		WHERE e.parent_id = ? AND c.completed_date = ?`,
		int64(parent), day.String(),
	)
}

func (r runner) queryCompletions(ctx context.Context, query string, args ...any) ([]tracker.Completion, error) {
	var rows []completionRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	out := make([]tracker.Completion, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCompletion()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("created_at %q: %w", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
