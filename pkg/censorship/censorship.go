// Package censorship implements C5, CensorshipInfo: the set of
// forbidden structural-metadata rows for one viewer, and the
// blanking rewrite that keeps a censored row's id stable in the
// stream while removing what it would reveal (§4.9, §6's
// bit-exact blanking table).
package censorship

import (
	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// ManualSortColID is exempt from column censorship (§4.9).
const ManualSortColID = "manualSort"

// Info holds the forbidden row-id sets computed from one snapshot of
// structural metadata for one viewer (§4.9). All sets are keyed by
// the referencing row's own integer id within its owning structural
// table — the same ids the cyclic sections/views/tables/columns
// graph threads through parentId/tableRef/colRef, modeled as arena
// row ids per DESIGN NOTES §9 rather than object pointers.
type Info struct {
	CensoredTableRefs   map[int64]bool
	UncensoredTableRefs map[int64]bool
	CensoredColumnRows  map[int64]bool
	CensoredSectionRows map[int64]bool
	CensoredViewRows    map[int64]bool
	CensoredFieldRows   map[int64]bool
}

func newInfo() *Info {
	return &Info{
		CensoredTableRefs:   map[int64]bool{},
		UncensoredTableRefs: map[int64]bool{},
		CensoredColumnRows:  map[int64]bool{},
		CensoredSectionRows: map[int64]bool{},
		CensoredViewRows:    map[int64]bool{},
		CensoredFieldRows:   map[int64]bool{},
	}
}

func str(vals []any, i int) string {
	if i < 0 || i >= len(vals) {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}

func ref(vals []any, i int) int64 {
	if i < 0 || i >= len(vals) {
		return 0
	}
	switch n := vals[i].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Compute derives Info from meta's structural tables for viewer.
func Compute(meta *docmodel.DocData, viewer *permission.PermissionInfo) (*Info, error) {
	info := newInfo()
	if meta == nil || viewer == nil {
		return info, nil
	}

	tableIDByRef := map[int64]string{}
	if tablesTbl := meta.GetTable("_grist_Tables"); tablesTbl != nil {
		tableIDs := tablesTbl.Columns["tableId"]
		for i, ref_ := range tablesTbl.RowIDs {
			tableIDByRef[ref_] = str(tableIDs, i)
		}
	}

	columnsTbl := meta.GetTable("_grist_Tables_column")

	for tableRef, tableID := range tableIDByRef {
		access, err := viewer.GetTableAccess(tableID)
		if err != nil {
			return nil, err
		}
		if access.Read == aclrule.Deny {
			info.CensoredTableRefs[tableRef] = true
			continue
		}
		if access.Read == aclrule.Allow && allColumnsAllow(columnsTbl, tableRef, tableID, viewer) {
			info.UncensoredTableRefs[tableRef] = true
		}
	}

	if columnsTbl != nil {
		parentIDs := columnsTbl.Columns["parentId"]
		colIDs := columnsTbl.Columns["colId"]
		for i, rowID := range columnsTbl.RowIDs {
			parentRef := ref(parentIDs, i)
			colID := str(colIDs, i)
			if colID == ManualSortColID {
				continue
			}
			if info.CensoredTableRefs[parentRef] {
				info.CensoredColumnRows[rowID] = true
				continue
			}
			tableID := tableIDByRef[parentRef]
			access, err := viewer.GetColumnAccess(tableID, colID)
			if err != nil {
				return nil, err
			}
			if access.Read == aclrule.Deny {
				info.CensoredColumnRows[rowID] = true
			}
		}
	}

	if sectionsTbl := meta.GetTable("_grist_Views_section"); sectionsTbl != nil {
		tableRefs := sectionsTbl.Columns["tableRef"]
		parentIDs := sectionsTbl.Columns["parentId"]
		for i, rowID := range sectionsTbl.RowIDs {
			if info.CensoredTableRefs[ref(tableRefs, i)] {
				info.CensoredSectionRows[rowID] = true
				info.CensoredViewRows[ref(parentIDs, i)] = true
			}
		}
	}

	if fieldsTbl := meta.GetTable("_grist_Views_section_field"); fieldsTbl != nil {
		parentIDs := fieldsTbl.Columns["parentId"]
		colRefs := fieldsTbl.Columns["colRef"]
		for i, rowID := range fieldsTbl.RowIDs {
			if info.CensoredSectionRows[ref(parentIDs, i)] || info.CensoredColumnRows[ref(colRefs, i)] {
				info.CensoredFieldRows[rowID] = true
			}
		}
	}

	return info, nil
}

func allColumnsAllow(columnsTbl *docmodel.Table, tableRef int64, tableID string, viewer *permission.PermissionInfo) bool {
	if columnsTbl == nil {
		return true
	}
	parentIDs := columnsTbl.Columns["parentId"]
	colIDs := columnsTbl.Columns["colId"]
	for i := range columnsTbl.RowIDs {
		if ref(parentIDs, i) != tableRef {
			continue
		}
		colID := str(colIDs, i)
		access, err := viewer.GetColumnAccess(tableID, colID)
		if err != nil || access.Read != aclrule.Allow {
			return false
		}
	}
	return true
}
