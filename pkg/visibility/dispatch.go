package visibility

import (
	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// Dispatch implements §4.8: decide between dropping an outgoing
// action, passing it through untouched, column-pruning it alone, or
// running the full row-prune-then-column-prune pipeline, depending on
// how uniformly the viewer can read this table. Structural-table
// actions still need a second pass through CensorshipInfo afterward
// (§4.9) — that handoff needs the step-wide censorship Info computed
// once from the full metadata snapshot, so it is the bundle
// orchestration's job, not this function's.
func Dispatch(a *docmodel.DocAction, rowsBefore, rowsAfter *docmodel.Table, viewer *permission.PermissionInfo) ([]*docmodel.DocAction, error) {
	if a == nil {
		return nil, nil
	}

	tableAccess, err := viewer.GetTableAccess(a.TableID)
	if err != nil {
		return nil, err
	}

	hasColumnRule, hasRecordDependent := tableRuleShape(viewer.RuleCollection(), a.TableID)
	readCheck := permission.NewAccessCheck(aclrule.AxisRead)

	switch {
	case tableAccess.Read == aclrule.Deny:
		return nil, nil

	case tableAccess.Read == aclrule.Allow && !hasColumnRule:
		return []*docmodel.DocAction{a}, nil

	case !hasRecordDependent:
		pruned, err := PruneColumns(a, viewer, readCheck)
		if err != nil {
			return nil, err
		}
		if pruned == nil {
			return nil, nil
		}
		return []*docmodel.DocAction{pruned}, nil

	default:
		rowPruned, err := PruneRows(a, rowsBefore, rowsAfter, viewer)
		if err != nil {
			return nil, err
		}
		result := make([]*docmodel.DocAction, 0, len(rowPruned))
		for _, ra := range rowPruned {
			censored, err := CensorCells(ra, rowsAfter, rowsBefore, viewer)
			if err != nil {
				return nil, err
			}
			pruned, err := PruneColumns(censored, viewer, readCheck)
			if err != nil {
				return nil, err
			}
			if pruned != nil {
				result = append(result, pruned)
			}
		}
		return result, nil
	}
}

// tableRuleShape reports whether any compiled rule targets a column
// of tableID specifically, and whether any rule governing tableID (at
// either level) depends on a concrete record — the two facts the
// dispatch decision in §4.8 needs beyond the merged table verdict.
func tableRuleShape(rc *aclrule.RuleCollection, tableID string) (hasColumnRule, hasRecordDependent bool) {
	for _, key := range rc.Resources() {
		if key.TableID != tableID {
			continue
		}
		if !key.IsTableLevel() {
			hasColumnRule = true
		}
		for _, rule := range rc.RulesFor(key) {
			if rule.RecordDependent {
				hasRecordDependent = true
			}
		}
	}
	return hasColumnRule, hasRecordDependent
}
