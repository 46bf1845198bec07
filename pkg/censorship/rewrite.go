package censorship

import "github.com/kasuganosora/gacengine/pkg/docmodel"

// blanker zeroes the sensitive fields of row i of a structural-table
// action in place, per §6's bit-exact blanking table.
type blanker func(cols map[string][]any, i int)

var blankers = map[string]blanker{
	"_grist_Tables":               blankTablesRow,
	"_grist_Views":                blankViewsRow,
	"_grist_Views_section":        blankSectionRow,
	"_grist_Tables_column":        blankColumnRow,
	"_grist_Views_section_field":  blankFieldRow,
}

var censoredRowSets = map[string]func(*Info) map[int64]bool{
	"_grist_Tables":               func(i *Info) map[int64]bool { return i.CensoredTableRefs },
	"_grist_Views":                func(i *Info) map[int64]bool { return i.CensoredViewRows },
	"_grist_Views_section":        func(i *Info) map[int64]bool { return i.CensoredSectionRows },
	"_grist_Tables_column":        func(i *Info) map[int64]bool { return i.CensoredColumnRows },
	"_grist_Views_section_field":  func(i *Info) map[int64]bool { return i.CensoredFieldRows },
}

func setCell(cols map[string][]any, col string, i int, val any) {
	vals, ok := cols[col]
	if !ok || i >= len(vals) {
		return
	}
	vals[i] = val
}

func blankTablesRow(cols map[string][]any, i int) {
	setCell(cols, "tableId", i, "")
}

func blankViewsRow(cols map[string][]any, i int) {
	setCell(cols, "name", i, "")
}

func blankSectionRow(cols map[string][]any, i int) {
	setCell(cols, "title", i, "")
	setCell(cols, "tableRef", i, int64(0))
}

func blankColumnRow(cols map[string][]any, i int) {
	setCell(cols, "label", i, "")
	setCell(cols, "colId", i, "")
	setCell(cols, "widgetOptions", i, "")
	setCell(cols, "formula", i, "")
	setCell(cols, "type", i, "Any")
	setCell(cols, "parentId", i, int64(0))
}

func blankFieldRow(cols map[string][]any, i int) {
	setCell(cols, "widgetOptions", i, "")
	setCell(cols, "filter", i, "")
	setCell(cols, "parentId", i, int64(0))
}

// RewriteAction rewrites a structural-table DocAction for one viewer
// per §4.9. hasAccessRulesPermission gates the fallback branch for
// any structural table outside the five named blanking targets (in
// this engine, _grist_ACLResources/_grist_ACLRules): such a table is
// either passed through unchanged (ACL-editor viewers) or emptied
// entirely. Non-structural actions pass through untouched.
func RewriteAction(a *docmodel.DocAction, info *Info, hasAccessRulesPermission bool) *docmodel.DocAction {
	if a == nil || !docmodel.IsStructuralTable(a.TableID) {
		return a
	}

	blank, isBlanked := blankers[a.TableID]
	if !isBlanked {
		if hasAccessRulesPermission {
			return a
		}
		return emptyPayload(a)
	}

	censored := censoredRowSets[a.TableID](info)
	if len(censored) == 0 {
		return a
	}

	out := a.Clone()
	for i, rowID := range out.RowIDs {
		if censored[rowID] {
			blank(out.Columns, i)
		}
	}
	return out
}

// emptyPayload clears an action's row/column payload entirely,
// suppressing the whole TableData for a non-ACL viewer (§4.9).
func emptyPayload(a *docmodel.DocAction) *docmodel.DocAction {
	out := a.Clone()
	out.RowIDs = nil
	out.Columns = map[string][]any{}
	return out
}
