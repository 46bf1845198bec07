// Package aclrule implements the compiled rule store (C3, RuleCollection)
// that backs permission evaluation: resources, predicates, and the
// ternary PermissionSet algebra rules are merged under.
package aclrule

// Verdict is a ternary permission outcome for one axis of a
// PermissionSet. Unset means no rule has spoken for this bit yet;
// Mixed means a per-row decision is required (a rule referencing
// rec/newRec could not be evaluated without a concrete row). Two
// resolved rules that disagree on the same bit merge to Deny, not
// Mixed (see MergeVerdict).
type Verdict int

const (
	Unset Verdict = iota
	Allow
	Deny
	Mixed
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Mixed:
		return "mixed"
	default:
		return "unset"
	}
}

// MergeVerdict combines two verdicts for the same bit under
// "first explicit wins per bit", deterministically and commutatively:
// an Unset operand yields the other; equal operands pass through;
// a Deny beats a disagreeing Allow/Mixed (secure default); an
// Allow/Mixed disagreement collapses to Mixed. See DESIGN.md's Open
// Question resolution for the full rationale.
func MergeVerdict(a, b Verdict) Verdict {
	if a == Unset {
		return b
	}
	if b == Unset {
		return a
	}
	if a == b {
		return a
	}
	if a == Deny || b == Deny {
		return Deny
	}
	return Mixed
}

// Axis names an evaluable permission bit.
type Axis int

const (
	AxisRead Axis = iota
	AxisUpdate
	AxisCreate
	AxisDelete
	AxisSchemaEdit
	numAxes
)

func (a Axis) String() string {
	switch a {
	case AxisRead:
		return "read"
	case AxisUpdate:
		return "update"
	case AxisCreate:
		return "create"
	case AxisDelete:
		return "delete"
	case AxisSchemaEdit:
		return "schemaEdit"
	default:
		return "unknown"
	}
}

// PermissionSet is the five-axis ternary record every rule
// contributes a delta to and every evaluation ultimately merges down
// to (§3, "PermissionSet").
type PermissionSet struct {
	Read       Verdict
	Update     Verdict
	Create     Verdict
	Delete     Verdict
	SchemaEdit Verdict
}

// Get returns the verdict for a named axis.
func (p PermissionSet) Get(axis Axis) Verdict {
	switch axis {
	case AxisRead:
		return p.Read
	case AxisUpdate:
		return p.Update
	case AxisCreate:
		return p.Create
	case AxisDelete:
		return p.Delete
	case AxisSchemaEdit:
		return p.SchemaEdit
	default:
		return Unset
	}
}

// Merge combines two permission sets bit-by-bit via MergeVerdict.
func (p PermissionSet) Merge(other PermissionSet) PermissionSet {
	return PermissionSet{
		Read:       MergeVerdict(p.Read, other.Read),
		Update:     MergeVerdict(p.Update, other.Update),
		Create:     MergeVerdict(p.Create, other.Create),
		Delete:     MergeVerdict(p.Delete, other.Delete),
		SchemaEdit: MergeVerdict(p.SchemaEdit, other.SchemaEdit),
	}
}

// WithDefault resolves any Unset axis to def, the table-default rule
// ("owner-allow, others as specified" per §3).
func (p PermissionSet) WithDefault(def PermissionSet) PermissionSet {
	resolve := func(v, d Verdict) Verdict {
		if v == Unset {
			return d
		}
		return v
	}
	return PermissionSet{
		Read:       resolve(p.Read, def.Read),
		Update:     resolve(p.Update, def.Update),
		Create:     resolve(p.Create, def.Create),
		Delete:     resolve(p.Delete, def.Delete),
		SchemaEdit: resolve(p.SchemaEdit, def.SchemaEdit),
	}
}

// AllowAll is the table-default rule for an owner: every axis allowed.
func AllowAll() PermissionSet {
	return PermissionSet{Read: Allow, Update: Allow, Create: Allow, Delete: Allow, SchemaEdit: Allow}
}

// DenyAll is a conservative default for a table with no owner-equivalent
// fallback rule.
func DenyAll() PermissionSet {
	return PermissionSet{Read: Deny, Update: Deny, Create: Deny, Delete: Deny, SchemaEdit: Deny}
}

// RuleType records which bucket a PermissionSetWithContext's verdict
// was computed by, for the row/table/column/special dispatch in
// §4.6-4.8.
type RuleType int

const (
	RuleTypeTable RuleType = iota
	RuleTypeColumn
	RuleTypeRow
	RuleTypeSpecial
)

// PermissionSetWithContext is the PermissionInfo-facing result:
// a merged PermissionSet plus the rule type that produced it and any
// memos attached by denying rules, so ingress errors can surface the
// rule author's explanation (§4.1).
type PermissionSetWithContext struct {
	PermissionSet
	RuleType RuleType
	Memos    []string
}

// MergeWithContext merges two contextual sets, concatenating memos
// from any side that contributed a Deny verdict on any axis.
func (p PermissionSetWithContext) MergeWithContext(other PermissionSetWithContext) PermissionSetWithContext {
	merged := p.PermissionSet.Merge(other.PermissionSet)
	memos := append(append([]string{}, p.Memos...), other.Memos...)
	ruleType := p.RuleType
	if other.RuleType > ruleType {
		ruleType = other.RuleType
	}
	return PermissionSetWithContext{PermissionSet: merged, RuleType: ruleType, Memos: memos}
}
