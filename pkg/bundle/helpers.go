package bundle

import (
	"github.com/kasuganosora/gacengine/pkg/censorship"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
	"github.com/kasuganosora/gacengine/pkg/visibility"
)

// tableToAction renders a full table snapshot as the TableData
// DocAction the egress filter expects as input.
func tableToAction(t *docmodel.Table) *docmodel.DocAction {
	return &docmodel.DocAction{
		Name:    docmodel.ActionTableData,
		TableID: t.TableID,
		RowIDs:  append([]int64(nil), t.RowIDs...),
		Columns: cloneColumns(t.Columns),
	}
}

// actionToTable reconstitutes a filtered DocAction back into a Table
// snapshot for callers that operate on tables rather than actions.
func actionToTable(a *docmodel.DocAction, fallbackID string) *docmodel.Table {
	if a == nil {
		return docmodel.NewTable(fallbackID)
	}
	out := docmodel.NewTable(a.TableID)
	out.RowIDs = append([]int64(nil), a.RowIDs...)
	for col, vals := range a.Columns {
		out.Columns[col] = append([]any(nil), vals...)
	}
	return out
}

func cloneColumns(cols map[string][]any) map[string][]any {
	out := make(map[string][]any, len(cols))
	for k, v := range cols {
		out[k] = append([]any(nil), v...)
	}
	return out
}

// dispatchAndCensor runs the egress row/column filter and, for a
// structural table with a meta snapshot available, a second
// field-blanking pass through CensorshipInfo — the same two-stage
// pipeline §4.8 describes for live broadcasts, reused here for the
// standalone filterData/filterOutgoingDocActions API surface too.
func dispatchAndCensor(action *docmodel.DocAction, before, after *docmodel.Table, meta *docmodel.DocData, viewer *permission.PermissionInfo, hasAccessRulesPermission bool) ([]*docmodel.DocAction, error) {
	dispatched, err := visibility.Dispatch(action, before, after, viewer)
	if err != nil {
		return nil, err
	}
	if len(dispatched) == 0 || !docmodel.IsStructuralTable(action.TableID) || meta == nil {
		return dispatched, nil
	}

	info, err := censorship.Compute(meta, viewer)
	if err != nil {
		return nil, err
	}
	out := make([]*docmodel.DocAction, len(dispatched))
	for i, a := range dispatched {
		out[i] = censorship.RewriteAction(a, info, hasAccessRulesPermission)
	}
	return out, nil
}
