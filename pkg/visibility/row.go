package visibility

import (
	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// PruneRows implements §4.7: for one action within one step, rewrite
// it into up to three actions — a synthetic BulkAddRecord for rows
// newly visible, the original action stripped of rows the viewer
// gained or lost sight of, and a synthetic BulkRemoveRecord for rows
// newly hidden — in that order. Rows forbidden on both sides of the
// step are dropped outright: they appear neither in the stripped
// action nor in a synthetic one.
func PruneRows(a *docmodel.DocAction, rowsBefore, rowsAfter *docmodel.Table, viewer *permission.PermissionInfo) ([]*docmodel.DocAction, error) {
	if a == nil || !a.IsRowAction() {
		if a == nil {
			return nil, nil
		}
		return []*docmodel.DocAction{a}, nil
	}

	keep := map[int64]bool{}
	var becameVisible, becameHidden []int64

	for _, rowID := range a.RowIDs {
		forbiddenBefore, err := isForbidden(viewer, a.TableID, rowsBefore, rowID)
		if err != nil {
			return nil, err
		}
		forbiddenAfter, err := isForbidden(viewer, a.TableID, rowsAfter, rowID)
		if err != nil {
			return nil, err
		}

		switch {
		case forbiddenBefore && forbiddenAfter:
			// never visible on either side: drop entirely
		case !forbiddenBefore && !forbiddenAfter:
			keep[rowID] = true
		case forbiddenBefore && !forbiddenAfter:
			if a.IsAdd() {
				keep[rowID] = true
			} else {
				becameVisible = append(becameVisible, rowID)
			}
		case !forbiddenBefore && forbiddenAfter:
			if a.IsRemove() {
				keep[rowID] = true
			} else {
				becameHidden = append(becameHidden, rowID)
			}
		}
	}

	var out []*docmodel.DocAction

	if len(becameVisible) > 0 {
		out = append(out, buildForceAdd(a.TableID, becameVisible, rowsAfter))
	}

	if pruned := stripRows(a, keep); pruned != nil {
		out = append(out, pruned)
	}

	if len(becameHidden) > 0 {
		out = append(out, &docmodel.DocAction{
			Name:    docmodel.ActionBulkRemoveRecord,
			TableID: a.TableID,
			RowIDs:  becameHidden,
		})
	}

	return out, nil
}

func isForbidden(viewer *permission.PermissionInfo, tableID string, t *docmodel.Table, rowID int64) (bool, error) {
	rec, ok := extractRecord(t, rowID)
	if !ok {
		return true, nil
	}
	access, err := viewer.WithRecord(rec, nil).GetTableAccess(tableID)
	if err != nil {
		return false, err
	}
	return access.Read != aclrule.Allow, nil
}

func buildForceAdd(tableID string, rowIDs []int64, rowsAfter *docmodel.Table) *docmodel.DocAction {
	cols := map[string][]any{}
	if rowsAfter != nil {
		for col := range rowsAfter.Columns {
			vals := make([]any, len(rowIDs))
			for i, rowID := range rowIDs {
				view := docmodel.NewRecordView(rowsAfter, rowID)
				v, _ := view.Get(col)
				vals[i] = v
			}
			cols[col] = vals
		}
	}
	return &docmodel.DocAction{
		Name:    docmodel.ActionBulkAddRecord,
		TableID: tableID,
		RowIDs:  rowIDs,
		Columns: cols,
	}
}

// stripRows returns a copy of a containing only the rows in keep,
// removing indices from RowIDs and every column's value array in
// lockstep (§4.7 step 3). Returns nil if no row survives (a singleton
// action whose sole row is dropped resolves to nil, matching the
// "return null when the sole row is removed" rule for non-bulk
// actions).
func stripRows(a *docmodel.DocAction, keep map[int64]bool) *docmodel.DocAction {
	keptIdx := make([]int, 0, len(a.RowIDs))
	for i, id := range a.RowIDs {
		if keep[id] {
			keptIdx = append(keptIdx, i)
		}
	}
	if len(keptIdx) == 0 {
		return nil
	}
	if len(keptIdx) == len(a.RowIDs) {
		return a.Clone()
	}

	out := a.Clone()
	newIDs := make([]int64, len(keptIdx))
	for j, i := range keptIdx {
		newIDs[j] = a.RowIDs[i]
	}
	out.RowIDs = newIDs
	for col, vals := range a.Columns {
		newVals := make([]any, len(keptIdx))
		for j, i := range keptIdx {
			if i < len(vals) {
				newVals[j] = vals[i]
			}
		}
		out.Columns[col] = newVals
	}
	return out
}
