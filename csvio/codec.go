/*
codec.go - CSV export and import of entities and completions

PURPOSE:
  Moves an owner's data to and from two flat files. Import regenerates
  every primary key, so entity import returns a remap table (old id ->
  new id) that completion import uses to re-attach completions.

FORMATS:
  entities.csv     id,title,created_at,is_active,has_subtasks
                   title always double-quoted, inner quotes doubled
  completions.csv  id,task_id,completed_date,created_at

IMPORT RULES:
  - Header names are matched after lower-casing and dropping spaces and
    underscores; column order does not matter.
  - Entity rows split on commas outside quotes. Completion rows split on
    every comma.
  - Bad rows are skipped and reported as *tracker.RowSkipError; they never
    abort the import.
  - A completion whose (entity, date) already exists is skipped, so
    importing the same file twice adds nothing.

TRANSACTIONS:
  Each import runs in one TxStore.WithTx. A store failure rolls back the
  whole file; skipped rows do not.

SEE ALSO:
  - split.go: Header and row splitting
*/
package csvio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/streak-engine/tracker"
)

const (
	EntitiesHeader    = "id,title,created_at,is_active,has_subtasks"
	CompletionsHeader = "id,task_id,completed_date,created_at"

	maxLine = 1 << 20
)

// Codec reads and writes CSV against a store.
type Codec struct {
	Store tracker.TxStore
	Clock tracker.Clock
	Log   zerolog.Logger
}

// NewCodec creates a codec with the system clock and a no-op logger.
func NewCodec(store tracker.TxStore) *Codec {
	return &Codec{Store: store, Clock: tracker.SystemClock(nil), Log: zerolog.Nop()}
}

// RemapTable maps ids from an imported file to the ids the store assigned.
type RemapTable map[tracker.EntityID]tracker.EntityID

// EntityImport is the outcome of ImportEntities.
type EntityImport struct {
	Remap   RemapTable
	Created int
	Skipped []*tracker.RowSkipError
}

// CompletionImport is the outcome of ImportCompletions.
type CompletionImport struct {
	Created int
	Skipped []*tracker.RowSkipError
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportEntities writes every top-level entity of owner, active or not,
// in id order. The header is written even when there are no rows.
func (c *Codec) ExportEntities(ctx context.Context, owner tracker.OwnerID, w io.Writer) error {
	entities, err := c.Store.ListEntities(ctx, owner, tracker.EntityFilter{})
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, EntitiesHeader)
	for _, e := range entities {
		fmt.Fprintf(bw, "%d,%s,%s,%t,%t\n",
			e.ID, quote(e.Title), formatInstant(e.CreatedAt), e.Active, e.SupportsSubItems)
	}
	return bw.Flush()
}

// ExportCompletions writes every completion of owner's top-level
// entities in id order.
func (c *Codec) ExportCompletions(ctx context.Context, owner tracker.OwnerID, w io.Writer) error {
	cs, err := c.Store.ListOwnerCompletions(ctx, owner, nil)
	if err != nil {
		return fmt.Errorf("list completions: %w", err)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, CompletionsHeader)
	for _, cp := range cs {
		fmt.Fprintf(bw, "%d,%d,%s,%s\n", cp.ID, cp.EntityID, cp.Date, formatInstant(cp.CreatedAt))
	}
	return bw.Flush()
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// =============================================================================
// IMPORT ENTITIES
// =============================================================================

// ImportEntities creates one new entity per row with a non-blank title.
// An empty file or a header without a title column is a ValidationError.
func (c *Codec) ImportEntities(ctx context.Context, owner tracker.OwnerID, r io.Reader) (EntityImport, error) {
	lines := newLineReader(r)
	first, ok := lines.next()
	if !ok {
		if err := lines.err(); err != nil {
			return EntityImport{}, err
		}
		return EntityImport{}, &tracker.ValidationError{Field: "file", Message: "CSV file is empty"}
	}
	h, _ := parseHeader(first)
	titleCol, ok := h.lookup("title")
	if !ok {
		return EntityImport{}, &tracker.ValidationError{Field: "header", Message: "CSV must contain a title column"}
	}
	idCol, hasID := h.lookup("id")
	createdCol, hasCreated := h.lookup("createdat")
	activeCol, hasActive := h.lookup("isactive")
	subCol, hasSub := h.lookup("hassubtasks", "supportssubitems")

	res := EntityImport{Remap: make(RemapTable)}
	err := c.Store.WithTx(ctx, func(tx tracker.Store) error {
		for {
			line, ok := lines.next()
			if !ok {
				return lines.err()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cols := splitQuoted(line)
			skip := func(reason string) {
				res.Skipped = append(res.Skipped, c.skip(lines.n, reason))
			}
			if titleCol >= len(cols) {
				skip("missing title column")
				continue
			}
			title := unquote(cols[titleCol])
			if title == "" {
				skip("empty title")
				continue
			}

			var (
				old    tracker.EntityID
				hasOld bool
			)
			if hasID && idCol < len(cols) {
				if n, err := strconv.ParseInt(strings.TrimSpace(cols[idCol]), 10, 64); err == nil {
					old, hasOld = tracker.EntityID(n), true
				}
			}
			// First row wins; later rows would orphan its completions.
			if _, dup := res.Remap[old]; hasOld && dup {
				skip(fmt.Sprintf("duplicate id %d", old))
				continue
			}

			e := tracker.Entity{
				OwnerID:   owner,
				Title:     title,
				Active:    true,
				CreatedAt: c.Clock.Instant().UTC(),
			}
			if hasCreated && createdCol < len(cols) {
				if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(cols[createdCol])); err == nil {
					e.CreatedAt = t.UTC()
				}
			}
			if hasActive {
				e.Active = activeCol < len(cols) && parseBool(cols[activeCol])
			}
			if hasSub && subCol < len(cols) {
				e.SupportsSubItems = parseBool(cols[subCol])
			}

			if err := tx.SaveEntity(ctx, &e); err != nil {
				return fmt.Errorf("line %d: save entity: %w", lines.n, err)
			}
			res.Created++
			if hasOld {
				res.Remap[old] = e.ID
			}
		}
	})
	if err != nil {
		return EntityImport{}, err
	}
	c.Log.Info().
		Str("owner", owner.String()).
		Int("created", res.Created).
		Int("skipped", len(res.Skipped)).
		Msg("entities imported")
	return res, nil
}

// =============================================================================
// IMPORT COMPLETIONS
// =============================================================================

// ImportCompletions attaches completions to the entities named by remap.
// Rows whose old id is not in remap, or whose new id is not one of
// owner's entities, are skipped. An empty file imports nothing.
func (c *Codec) ImportCompletions(ctx context.Context, owner tracker.OwnerID, r io.Reader, remap RemapTable) (CompletionImport, error) {
	lines := newLineReader(r)
	first, ok := lines.next()
	if !ok {
		return CompletionImport{}, lines.err()
	}
	h, width := parseHeader(first)
	entityCol, okEntity := h.lookup("taskid", "entityid")
	dateCol, okDate := h.lookup("completeddate")
	if !okEntity || !okDate {
		return CompletionImport{}, &tracker.ValidationError{Field: "header", Message: "CSV must contain taskId and completedDate columns"}
	}
	createdCol, hasCreated := h.lookup("createdat")

	var res CompletionImport
	err := c.Store.WithTx(ctx, func(tx tracker.Store) error {
		for {
			line, ok := lines.next()
			if !ok {
				return lines.err()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			skip := func(reason string) {
				res.Skipped = append(res.Skipped, c.skip(lines.n, reason))
			}
			cols := strings.Split(line, ",")
			if len(cols) < width {
				skip(fmt.Sprintf("expected %d columns, got %d", width, len(cols)))
				continue
			}
			old, err := strconv.ParseInt(strings.TrimSpace(cols[entityCol]), 10, 64)
			if err != nil {
				skip("invalid task id")
				continue
			}
			day, err := tracker.ParseDate(strings.TrimSpace(cols[dateCol]))
			if err != nil {
				skip("invalid completed date")
				continue
			}
			id, ok := remap[tracker.EntityID(old)]
			if !ok {
				skip(fmt.Sprintf("task id %d not in remap", old))
				continue
			}
			target, err := tx.GetEntity(ctx, owner, id)
			if err != nil {
				if tracker.IsNotFound(err) {
					skip(fmt.Sprintf("entity %d not found", id))
					continue
				}
				return fmt.Errorf("line %d: %w", lines.n, err)
			}
			if target.IsSubEntity() {
				skip(fmt.Sprintf("entity %d is a sub-entity", id))
				continue
			}
			exists, err := tx.CompletionExists(ctx, id, day)
			if err != nil {
				return fmt.Errorf("line %d: %w", lines.n, err)
			}
			if exists {
				skip("already completed on " + day.String())
				continue
			}

			cp := tracker.Completion{EntityID: id, Date: day, CreatedAt: c.Clock.Instant().UTC()}
			if hasCreated && createdCol < len(cols) {
				if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(cols[createdCol])); err == nil {
					cp.CreatedAt = t.UTC()
				}
			}
			if err := tx.SaveCompletion(ctx, &cp); err != nil {
				if errors.Is(err, tracker.ErrDuplicateCompletion) {
					skip("already completed on " + day.String())
					continue
				}
				return fmt.Errorf("line %d: save completion: %w", lines.n, err)
			}
			res.Created++
		}
	})
	if err != nil {
		return CompletionImport{}, err
	}
	c.Log.Info().
		Str("owner", owner.String()).
		Int("created", res.Created).
		Int("skipped", len(res.Skipped)).
		Msg("completions imported")
	return res, nil
}

func (c *Codec) skip(line int, reason string) *tracker.RowSkipError {
	c.Log.Debug().Int("line", line).Str("reason", reason).Msg("csv row skipped")
	return &tracker.RowSkipError{Line: line, Reason: reason}
}

// =============================================================================
// LINE READER
// =============================================================================

// lineReader yields lines without their terminator and counts them.
type lineReader struct {
	sc *bufio.Scanner
	n  int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &lineReader{sc: sc}
}

func (l *lineReader) next() (string, bool) {
	if !l.sc.Scan() {
		return "", false
	}
	l.n++
	return strings.TrimSuffix(strings.TrimPrefix(l.sc.Text(), "\ufeff"), "\r"), true
}

func (l *lineReader) err() error {
	if err := l.sc.Err(); err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	return nil
}
