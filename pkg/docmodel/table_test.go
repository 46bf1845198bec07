package docmodel

import "testing"

func TestRecordViewGet(t *testing.T) {
	tbl := NewTable("Orders")
	tbl.RowIDs = []int64{1, 2}
	tbl.Columns["status"] = []any{"open", "archived"}

	v := NewRecordView(tbl, 1)
	if !v.Found() {
		t.Fatal("expected row 1 to be found")
	}
	status, ok := v.Get("status")
	if !ok || status != "open" {
		t.Errorf("Get(status) = %v, %v; want open, true", status, ok)
	}

	missing := NewRecordView(tbl, 99)
	if missing.Found() {
		t.Error("row 99 should not be found")
	}
	if _, ok := missing.Get("status"); ok {
		t.Error("Get on a missing row should report not-ok")
	}
}

func TestRecordEditorSet(t *testing.T) {
	tbl := NewTable("Orders")
	tbl.RowIDs = []int64{1}
	tbl.Columns["status"] = []any{"draft"}

	e := NewRecordEditor(tbl, 1)
	e.Set("status", "open")
	if tbl.Columns["status"][0] != "open" {
		t.Errorf("status = %v, want open", tbl.Columns["status"][0])
	}

	e.Set("note", "hello") // column didn't exist yet
	if tbl.Columns["note"][0] != "hello" {
		t.Errorf("note = %v, want hello", tbl.Columns["note"][0])
	}
}

func TestTableClone(t *testing.T) {
	tbl := NewTable("Orders")
	tbl.RowIDs = []int64{1, 2}
	tbl.Columns["status"] = []any{"open", "archived"}

	clone := tbl.Clone()
	clone.Columns["status"][0] = "mutated"

	if tbl.Columns["status"][0] != "open" {
		t.Error("mutating a clone's column must not affect the original")
	}
}

func TestTableRowIDSet(t *testing.T) {
	tbl := NewTable("Orders")
	tbl.RowIDs = []int64{1, 2, 3}
	set := tbl.RowIDSet()
	for _, id := range []int64{1, 2, 3} {
		if !set[id] {
			t.Errorf("row id %d missing from RowIDSet", id)
		}
	}
	if set[4] {
		t.Error("RowIDSet should not contain row 4")
	}
}
