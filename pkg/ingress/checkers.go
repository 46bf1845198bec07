// Package ingress implements C10: pre-apply assertions over incoming
// UserActions/DocActions — classification against the closed buckets
// in §3, and per-action permission checks reusing the same
// AccessCheck the egress filter (pkg/visibility) consults (§4.10).
package ingress

import (
	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// CheckUserAction classifies a per §3 and applies the bucket rule: OK
// always passes; Special requires the viewer not be "nuanced"
// restricted; Surprising requires full access; Data and Deferred
// actions are not decided here — Data needs the lowered DocActions
// (checked individually via CheckDocAction), Deferred is resolved by
// the caller after lowering.
func CheckUserAction(a docmodel.UserAction, hasNuancedAccess, hasFullAccess bool) error {
	switch a.Classify() {
	case docmodel.ClassOK:
		return nil
	case docmodel.ClassSpecial:
		if hasNuancedAccess {
			return &permission.ErrAccessDenied{Axis: aclrule.AxisSchemaEdit}
		}
		return nil
	case docmodel.ClassSurprising:
		if !hasFullAccess {
			return &permission.ErrAccessDenied{Axis: aclrule.AxisSchemaEdit}
		}
		return nil
	default:
		return nil
	}
}

// CheckDocAction runs the fatal-severity AccessCheck for one DocAction
// against viewer (§4.11's "_checkIncomingDocAction"): a column-schema
// op checks its single column, a row op checks the table and then
// every column it touches — ingress is all-or-nothing, unlike the
// egress pruner which silently drops individual columns (§4.6 vs
// §4.10).
func CheckDocAction(a *docmodel.DocAction, viewer *permission.PermissionInfo) error {
	axis := permission.AxisForAction(a)
	check := permission.NewFatalAccessCheck(axis)

	if a.IsColumnSchemaOp() && a.ColID != "" {
		access, err := viewer.GetColumnAccess(a.TableID, a.ColID)
		if err != nil {
			return err
		}
		return check.ThrowIfDenied(access)
	}

	tableAccess, err := viewer.GetTableAccess(a.TableID)
	if err != nil {
		return err
	}
	if err := check.ThrowIfDenied(tableAccess); err != nil {
		return err
	}

	if !a.IsRowAction() || len(a.Columns) == 0 {
		return nil
	}
	for col := range a.Columns {
		colAccess, err := viewer.GetColumnAccess(a.TableID, col)
		if err != nil {
			return err
		}
		if err := check.ThrowIfDenied(colAccess); err != nil {
			return err
		}
	}
	return nil
}

// AssertCanMaybeApplyUserActions implements the engine API's
// assertCanMaybeApplyUserActions (§6): true means every action is
// decidably allowed without lowering to DocActions; false means at
// least one action (a row op, or one deferred past classification)
// needs the lowered form before a verdict is possible; a hard denial
// throws immediately instead of returning false.
func AssertCanMaybeApplyUserActions(actions []docmodel.UserAction, hasNuancedAccess, hasFullAccess bool) (bool, error) {
	decidable := true
	var walkErr error
	docmodel.ScanRecursive(actions, func(a docmodel.UserAction) {
		if walkErr != nil || a.IsRecursiveContainer() {
			return
		}
		if err := CheckUserAction(a, hasNuancedAccess, hasFullAccess); err != nil {
			walkErr = err
			return
		}
		switch a.Classify() {
		case docmodel.ClassData, docmodel.ClassDeferred:
			decidable = false
		}
	})
	if walkErr != nil {
		return false, walkErr
	}
	return decidable, nil
}

// HasDeliberateRuleChange reports whether any user action, at any
// recursion depth, explicitly names an ACL table — the "deliberate
// rule change" scan §4.11's begin performs, recursing into
// ApplyUndoActions/ApplyDocActions payloads per §9's DESIGN NOTES.
func HasDeliberateRuleChange(actions []docmodel.UserAction) bool {
	found := false
	docmodel.ScanRecursive(actions, func(a docmodel.UserAction) {
		if a.TableID == "_grist_ACLRules" || a.TableID == "_grist_ACLResources" {
			found = true
		}
	})
	return found
}

// CanScanData implements §9's second open question: no dedicated
// permission bit exists for autocomplete/find, so compatibility is
// kept by composing owner status with "can read everything" rather
// than inventing a new axis a rule author could never actually set.
func CanScanData(hasFullAccess, canReadEverything bool) bool {
	return hasFullAccess || canReadEverything
}
