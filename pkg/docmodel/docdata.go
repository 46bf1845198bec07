package docmodel

import (
	"context"
	"fmt"
	"sync"
)

// RowFetcher resolves rows missing from an in-memory table snapshot,
// standing in for the document store's query-from-DB callback (§3,
// "a query-from-DB callback for missing rows"). Real deployments wire
// this to the host's persistent row store; tests wire it to a fixture.
type RowFetcher func(ctx context.Context, tableID string, rowIDs []int64) (*Table, error)

// DocData is the in-memory relational snapshot addressable by
// tableId (§3). It is intentionally small: the real document store is
// an external collaborator (§1); DocData is the shape StepBuilder
// needs for its scratch snapshots, adapted from the registry pattern
// kept in sync with a mutex the way a connection manager tracks live
// data sources.
type DocData struct {
	mu     sync.RWMutex
	tables map[string]*Table
	fetch  RowFetcher
}

// NewDocData returns an empty DocData. fetch may be nil if the
// snapshot will only ever be populated by receiving actions (e.g. the
// scratch metadata DocData built from the live structural tables).
func NewDocData(fetch RowFetcher) *DocData {
	return &DocData{tables: map[string]*Table{}, fetch: fetch}
}

// GetTable returns the table for tableID, or nil if it doesn't exist
// in this snapshot.
func (d *DocData) GetTable(tableID string) *Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tables[tableID]
}

// SetTable installs t wholesale, replacing any existing table with
// the same id. Used when seeding a scratch DocData from a live one.
func (d *DocData) SetTable(t *Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[t.TableID] = t
}

// TableIDs returns the ids of every table currently present.
func (d *DocData) TableIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.tables))
	for id := range d.tables {
		ids = append(ids, id)
	}
	return ids
}

// SyncTable ensures rowIDs are present in tableID's snapshot, fetching
// any missing ones through the configured RowFetcher (§4.5 step 2).
// A nil fetcher is a no-op (nothing more to resolve).
func (d *DocData) SyncTable(ctx context.Context, tableID string, rowIDs []int64) error {
	if d.fetch == nil {
		return nil
	}
	d.mu.RLock()
	existing := d.tables[tableID]
	d.mu.RUnlock()

	missing := make([]int64, 0, len(rowIDs))
	for _, id := range rowIDs {
		if existing == nil || !existing.HasRow(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fetched, err := d.fetch(ctx, tableID, missing)
	if err != nil {
		return fmt.Errorf("sync table %s: %w", tableID, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.tables[tableID]
	if cur == nil {
		d.tables[tableID] = fetched
		return nil
	}
	merged := mergeRows(cur, fetched)
	d.tables[tableID] = merged
	return nil
}

func mergeRows(base, extra *Table) *Table {
	out := base.Clone()
	have := out.RowIDSet()
	for i, id := range extra.RowIDs {
		if have[id] {
			continue
		}
		out.RowIDs = append(out.RowIDs, id)
		for col, vals := range extra.Columns {
			var v any
			if i < len(vals) {
				v = vals[i]
			}
			out.Columns[col] = append(out.Columns[col], v)
		}
	}
	out.rowIndex = nil
	return out
}

// ReceiveAction applies a single DocAction to this snapshot in place,
// the way the real document store folds a committed action into its
// live tables (§4.5 step 5 replays this during step construction).
func (d *DocData) ReceiveAction(a *DocAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiveActionLocked(a)
}

func (d *DocData) receiveActionLocked(a *DocAction) error {
	switch a.Name {
	case ActionAddTable:
		if _, exists := d.tables[a.TableID]; exists {
			return fmt.Errorf("add table %s: %w", a.TableID, ErrTableAlreadyExists)
		}
		d.tables[a.TableID] = NewTable(a.TableID)
		return nil
	case ActionRemoveTable:
		delete(d.tables, a.TableID)
		return nil
	case ActionRenameTable:
		t, ok := d.tables[a.TableID]
		if !ok {
			return NewErrTableNotFound(a.TableID)
		}
		delete(d.tables, a.TableID)
		t.TableID = a.NewName
		d.tables[a.NewName] = t
		return nil
	case ActionAddColumn, ActionAddHiddenColumn:
		t := d.ensureTable(a.TableID)
		if _, exists := t.Columns[a.ColID]; !exists {
			t.Columns[a.ColID] = make([]any, len(t.RowIDs))
		}
		return nil
	case ActionRemoveColumn:
		t, ok := d.tables[a.TableID]
		if !ok {
			return NewErrTableNotFound(a.TableID)
		}
		delete(t.Columns, a.ColID)
		return nil
	case ActionRenameColumn:
		t, ok := d.tables[a.TableID]
		if !ok {
			return NewErrTableNotFound(a.TableID)
		}
		if vals, exists := t.Columns[a.ColID]; exists {
			delete(t.Columns, a.ColID)
			t.Columns[a.NewColID] = vals
		}
		return nil
	case ActionModifyColumn:
		return nil // column type/formula tweak; no row-shape change
	default:
		return d.receiveRowActionLocked(a)
	}
}

func (d *DocData) ensureTable(tableID string) *Table {
	t, ok := d.tables[tableID]
	if !ok {
		t = NewTable(tableID)
		d.tables[tableID] = t
	}
	return t
}

func (d *DocData) receiveRowActionLocked(a *DocAction) error {
	if !a.IsRowAction() {
		return nil
	}
	t := d.ensureTable(a.TableID)
	switch {
	case a.Name == ActionTableData || a.Name == ActionReplaceTableData:
		t.RowIDs = append([]int64(nil), a.RowIDs...)
		t.Columns = make(map[string][]any, len(a.Columns))
		for col, vals := range a.Columns {
			t.Columns[col] = append([]any(nil), vals...)
		}
		t.rowIndex = nil
	case a.IsAdd():
		for i, id := range a.RowIDs {
			if t.HasRow(id) {
				continue
			}
			t.RowIDs = append(t.RowIDs, id)
			for col, vals := range a.Columns {
				var v any
				if i < len(vals) {
					v = vals[i]
				}
				t.Columns[col] = append(t.Columns[col], v)
			}
			// any column not present in this action still needs a slot
			for col, existing := range t.Columns {
				if _, touched := a.Columns[col]; !touched {
					t.Columns[col] = append(existing, nil)
				}
			}
		}
		t.rowIndex = nil
	case a.IsUpdate():
		for i, id := range a.RowIDs {
			idx, ok := t.indexOf(id)
			if !ok {
				continue
			}
			for col, vals := range a.Columns {
				if i >= len(vals) {
					continue
				}
				cur := t.Columns[col]
				for len(cur) <= idx {
					cur = append(cur, nil)
				}
				cur[idx] = vals[i]
				t.Columns[col] = cur
			}
		}
	case a.IsRemove():
		remove := make(map[int64]bool, len(a.RowIDs))
		for _, id := range a.RowIDs {
			remove[id] = true
		}
		newIDs := t.RowIDs[:0:0]
		keepIdx := make([]int, 0, len(t.RowIDs))
		for i, id := range t.RowIDs {
			if remove[id] {
				continue
			}
			newIDs = append(newIDs, id)
			keepIdx = append(keepIdx, i)
		}
		newCols := make(map[string][]any, len(t.Columns))
		for col, vals := range t.Columns {
			kept := make([]any, 0, len(keepIdx))
			for _, i := range keepIdx {
				if i < len(vals) {
					kept = append(kept, vals[i])
				} else {
					kept = append(kept, nil)
				}
			}
			newCols[col] = kept
		}
		t.RowIDs = newIDs
		t.Columns = newCols
		t.rowIndex = nil
	}
	return nil
}
