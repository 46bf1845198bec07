package permission

import (
	"fmt"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

// Severity distinguishes a check performed for egress filtering
// (silent prune) from one performed at ingress (hard failure) (§4.10).
type Severity int

const (
	SeverityCheck Severity = iota
	SeverityFatal
)

// AccessCheck binds one permission axis and a severity: Get reads the
// raw verdict, ThrowIfDenied surfaces a Deny as an error carrying any
// memos attached by the denying rule (§4.10).
type AccessCheck struct {
	Axis     aclrule.Axis
	Severity Severity
}

// NewAccessCheck returns a check-severity AccessCheck for axis.
func NewAccessCheck(axis aclrule.Axis) AccessCheck {
	return AccessCheck{Axis: axis, Severity: SeverityCheck}
}

// NewFatalAccessCheck returns a fatal-severity AccessCheck for axis,
// the ingress variant that throws on denial.
func NewFatalAccessCheck(axis aclrule.Axis) AccessCheck {
	return AccessCheck{Axis: axis, Severity: SeverityFatal}
}

// Get returns the raw verdict ps carries on this check's axis.
func (c AccessCheck) Get(ps aclrule.PermissionSetWithContext) aclrule.Verdict {
	return ps.Get(c.Axis)
}

// ErrAccessDenied is the ACL_DENY wire error (§6, §7): a hard denial
// raised from an ingress check, carrying any memos the denying rule
// attached so the caller can surface the rule author's explanation.
type ErrAccessDenied struct {
	Axis  aclrule.Axis
	Memos []string
}

func (e *ErrAccessDenied) Error() string {
	if len(e.Memos) == 0 {
		return fmt.Sprintf("ACL_DENY: %s access denied", e.Axis)
	}
	return fmt.Sprintf("ACL_DENY: %s access denied: %v", e.Axis, e.Memos)
}

// ThrowIfDenied returns an *ErrAccessDenied if ps denies this check's
// axis; nil otherwise. Used at ingress regardless of configured
// severity — "the access check itself throws on deny" (§4.6) when
// invoked from a fatal context; egress callers use Get directly
// instead so a deny silently prunes rather than erroring.
func (c AccessCheck) ThrowIfDenied(ps aclrule.PermissionSetWithContext) error {
	if c.Get(ps) == aclrule.Deny {
		return &ErrAccessDenied{Axis: c.Axis, Memos: ps.Memos}
	}
	return nil
}

// AxisForAction maps a DocAction to the axis governing it (§4.10):
// a structural-table action always needs schemaEdit; otherwise the
// row-op kind picks update/delete/create; anything else (schema ops
// on ordinary tables) also needs schemaEdit.
func AxisForAction(a *docmodel.DocAction) aclrule.Axis {
	if docmodel.IsStructuralTable(a.TableID) {
		return aclrule.AxisSchemaEdit
	}
	switch {
	case a.IsUpdate():
		return aclrule.AxisUpdate
	case a.IsRemove():
		return aclrule.AxisDelete
	case a.IsAdd():
		return aclrule.AxisCreate
	default:
		return aclrule.AxisSchemaEdit
	}
}
