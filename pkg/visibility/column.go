// Package visibility implements C8, the row/column pruning filter
// that rewrites one committed action per viewer: hiding rows the
// viewer can no longer see, synthesizing add/remove actions for rows
// crossing a visibility boundary, pruning denied columns, and
// censoring individual cells (§4.6-4.8).
package visibility

import (
	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// ManualSortColID is preserved unconditionally by column pruning (§4.6).
const ManualSortColID = "manualSort"

// CensoredSentinel is written over a denied cell in place of its real
// value (§6, "Sentinel values").
const CensoredSentinel = "CENSORED"

// PruneColumns implements §4.6: for cell-carrying actions, drop any
// column that fails check against viewer's column access, preserving
// manualSort unconditionally; for single-column schema ops, drop the
// whole action if that column fails; pure removals pass through
// untouched. Returns nil if pruning would leave the action empty.
func PruneColumns(a *docmodel.DocAction, viewer *permission.PermissionInfo, check permission.AccessCheck) (*docmodel.DocAction, error) {
	if a == nil {
		return nil, nil
	}

	switch {
	case a.IsRemove():
		return a, nil

	case a.IsColumnSchemaOp():
		if a.ColID == ManualSortColID {
			return a, nil
		}
		access, err := viewer.GetColumnAccess(a.TableID, a.ColID)
		if err != nil {
			return nil, err
		}
		if check.Get(access) == aclrule.Deny {
			return nil, nil
		}
		return a, nil

	case a.IsRowAction():
		out := a.Clone()
		for col := range a.Columns {
			if col == ManualSortColID {
				continue
			}
			access, err := viewer.GetColumnAccess(a.TableID, col)
			if err != nil {
				return nil, err
			}
			if check.Get(access) == aclrule.Deny {
				delete(out.Columns, col)
			}
		}
		if len(out.Columns) == 0 {
			return nil, nil
		}
		return out, nil

	default:
		return a, nil
	}
}

// CensorCells overwrites cells of cell-carrying action a with
// CensoredSentinel wherever the viewer's per-row column access denies
// Read, using rowsAfter (or rowsBefore for a pure remove, which has no
// after-state) to resolve the record each predicate evaluates against
// (§4.7 step 4).
func CensorCells(a *docmodel.DocAction, rowsAfter, rowsBefore *docmodel.Table, viewer *permission.PermissionInfo) (*docmodel.DocAction, error) {
	if a == nil || !a.IsRowAction() || len(a.Columns) == 0 {
		return a, nil
	}

	out := a.Clone()
	for i, rowID := range out.RowIDs {
		rec, ok := extractRecord(rowsAfter, rowID)
		if !ok {
			rec, ok = extractRecord(rowsBefore, rowID)
		}
		if !ok {
			continue
		}
		rowViewer := viewer.WithRecord(rec, nil)
		for col, vals := range out.Columns {
			if i >= len(vals) || col == ManualSortColID {
				continue
			}
			access, err := rowViewer.GetColumnAccess(a.TableID, col)
			if err != nil {
				return nil, err
			}
			if access.Read == aclrule.Deny {
				vals[i] = CensoredSentinel
			}
		}
	}
	return out, nil
}

func extractRecord(t *docmodel.Table, rowID int64) (map[string]any, bool) {
	if t == nil {
		return nil, false
	}
	view := docmodel.NewRecordView(t, rowID)
	if !view.Found() {
		return nil, false
	}
	rec := make(map[string]any, len(t.Columns))
	for col := range t.Columns {
		v, _ := view.Get(col)
		rec[col] = v
	}
	return rec, true
}
