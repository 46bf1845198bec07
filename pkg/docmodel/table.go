package docmodel

import "sort"

// Table is a columnar snapshot of one document table: row i has id
// RowIDs[i] and cell Columns[colID][i] (§3).
type Table struct {
	TableID string
	RowIDs  []int64
	Columns map[string][]any

	rowIndex map[int64]int // rowID -> position in RowIDs, rebuilt lazily
}

// NewTable returns an empty table ready to receive actions.
func NewTable(tableID string) *Table {
	return &Table{TableID: tableID, Columns: map[string][]any{}}
}

// Clone deep-copies t; used for the rowsBefore/rowsAfter snapshots a
// StepBuilder takes around every action (§4.5).
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		TableID: t.TableID,
		RowIDs:  append([]int64(nil), t.RowIDs...),
		Columns: make(map[string][]any, len(t.Columns)),
	}
	for col, vals := range t.Columns {
		out.Columns[col] = append([]any(nil), vals...)
	}
	return out
}

func (t *Table) indexOf(rowID int64) (int, bool) {
	if t.rowIndex == nil || len(t.rowIndex) != len(t.RowIDs) {
		t.rowIndex = make(map[int64]int, len(t.RowIDs))
		for i, id := range t.RowIDs {
			t.rowIndex[id] = i
		}
	}
	i, ok := t.rowIndex[rowID]
	return i, ok
}

// HasRow reports whether rowID currently exists in t.
func (t *Table) HasRow(rowID int64) bool {
	_, ok := t.indexOf(rowID)
	return ok
}

// RowIDSet returns the set of row ids currently present.
func (t *Table) RowIDSet() map[int64]bool {
	out := make(map[int64]bool, len(t.RowIDs))
	for _, id := range t.RowIDs {
		out[id] = true
	}
	return out
}

// ColumnIDs returns the table's column ids in stable sorted order.
func (t *Table) ColumnIDs() []string {
	cols := make([]string, 0, len(t.Columns))
	for c := range t.Columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// RecordView is a read-only row-shaped view over one row of a Table,
// addressed by column id (C1).
type RecordView struct {
	table *Table
	row   int
	found bool
	id    int64
}

// NewRecordView returns a view over rowID in t, or a not-found view if
// the row is absent (Get then returns ok=false for every column).
func NewRecordView(t *Table, rowID int64) *RecordView {
	if t == nil {
		return &RecordView{found: false, id: rowID}
	}
	i, ok := t.indexOf(rowID)
	return &RecordView{table: t, row: i, found: ok, id: rowID}
}

// ID returns the row id this view addresses.
func (r *RecordView) ID() int64 { return r.id }

// Found reports whether the row actually exists in the backing table.
func (r *RecordView) Found() bool { return r != nil && r.found }

// Get returns the value of colID for this row.
func (r *RecordView) Get(colID string) (any, bool) {
	if r == nil || !r.found {
		return nil, false
	}
	vals, ok := r.table.Columns[colID]
	if !ok || r.row >= len(vals) {
		return nil, false
	}
	return vals[r.row], true
}

// TableID returns the id of the table this row belongs to.
func (r *RecordView) TableID() string {
	if r == nil || r.table == nil {
		return ""
	}
	return r.table.TableID
}

// RecordEditor is the editable counterpart of RecordView, used when
// applying a DocAction into a scratch table during step construction.
type RecordEditor struct {
	*RecordView
}

// NewRecordEditor wraps rowID in t for in-place mutation.
func NewRecordEditor(t *Table, rowID int64) *RecordEditor {
	return &RecordEditor{RecordView: NewRecordView(t, rowID)}
}

// Set writes value into colID for this row, growing the column slice
// if needed.
func (e *RecordEditor) Set(colID string, value any) {
	if e == nil || !e.found {
		return
	}
	vals := e.table.Columns[colID]
	for len(vals) <= e.row {
		vals = append(vals, nil)
	}
	vals[e.row] = value
	e.table.Columns[colID] = vals
}
