package aclrule

import "fmt"

// ResourceKey identifies what an AclRule governs: a whole table
// (ColID == AllColumns) or one column of it (§3, "Rule resource").
type ResourceKey struct {
	TableID string
	ColID   string
}

// AllColumns is the sentinel ColID meaning "the whole table".
const AllColumns = "*"

func (r ResourceKey) String() string {
	if r.ColID == "" || r.ColID == AllColumns {
		return r.TableID
	}
	return fmt.Sprintf("%s.%s", r.TableID, r.ColID)
}

// IsTableLevel reports whether this resource governs the whole table
// rather than one column.
func (r ResourceKey) IsTableLevel() bool {
	return r.ColID == "" || r.ColID == AllColumns
}

// EvalContext is what a compiled predicate closes over: the resolved
// user attributes, and optionally the row before (rec) and after
// (newRec) a mutation. Rec/NewRec are nil when no concrete record is
// available (table/column-level evaluation, §4.1).
type EvalContext struct {
	User   map[string]any
	Rec    map[string]any
	NewRec map[string]any
}

// HasRecord reports whether this context carries a concrete row,
// meaning every predicate referencing rec/newRec can be fully
// evaluated instead of contributing Mixed.
func (c EvalContext) HasRecord() bool {
	return c.Rec != nil || c.NewRec != nil
}

// Predicate is a compiled rule formula: true means the rule's delta
// applies to this evaluation. The rule language and its compiler are
// out of scope (§1); this is the interface the injected compiler
// must produce.
type Predicate func(ctx EvalContext) (bool, error)

// AlwaysTrue is the predicate for unconditional rules (the common
// case: a rule with no "when" clause).
func AlwaysTrue(EvalContext) (bool, error) { return true, nil }

// RecordDependent is implemented by a Predicate's owning AclRule to
// report whether evaluating it requires a concrete record. The
// compiler is expected to classify this at compile time (static
// analysis of which formula identifiers it references) rather than
// trial-evaluating the predicate.
type RecordDependent bool

// AclRule is one compiled rule: a resource, a predicate, the
// permission delta it contributes when the predicate matches, and an
// optional memo surfaced on denial (§3, "Rule resource").
type AclRule struct {
	Resource        ResourceKey
	RuleType        RuleType
	Predicate       Predicate
	RecordDependent bool
	Delta           PermissionSet
	Memo            string
}

// Evaluate runs the rule's predicate against ctx. If the rule is
// record-dependent and ctx carries no concrete record, it contributes
// Mixed on every axis its delta touches instead of evaluating the
// predicate at all (§4.1, "rules whose predicates reference rec/newRec
// contribute a mixed verdict ... meaning decide per row").
func (r *AclRule) Evaluate(ctx EvalContext) (PermissionSetWithContext, error) {
	if r.RecordDependent && !ctx.HasRecord() {
		return PermissionSetWithContext{
			PermissionSet: mixedWhereSet(r.Delta),
			RuleType:      r.RuleType,
		}, nil
	}

	matched, err := r.Predicate(ctx)
	if err != nil {
		return PermissionSetWithContext{}, fmt.Errorf("evaluate rule on %s: %w", r.Resource, err)
	}
	if !matched {
		return PermissionSetWithContext{RuleType: r.RuleType}, nil
	}

	var memos []string
	if r.Memo != "" && hasAnyDeny(r.Delta) {
		memos = []string{r.Memo}
	}
	return PermissionSetWithContext{PermissionSet: r.Delta, RuleType: r.RuleType, Memos: memos}, nil
}

func mixedWhereSet(delta PermissionSet) PermissionSet {
	toMixed := func(v Verdict) Verdict {
		if v == Unset {
			return Unset
		}
		return Mixed
	}
	return PermissionSet{
		Read:       toMixed(delta.Read),
		Update:     toMixed(delta.Update),
		Create:     toMixed(delta.Create),
		Delete:     toMixed(delta.Delete),
		SchemaEdit: toMixed(delta.SchemaEdit),
	}
}

func hasAnyDeny(p PermissionSet) bool {
	return p.Read == Deny || p.Update == Deny || p.Create == Deny || p.Delete == Deny || p.SchemaEdit == Deny
}

// UserAttributeRule is a row of the user-attribute source table:
// it tells UserResolver step 3 to resolve `user.<CharID>`, look up
// LookupColID = that value in TableID, and attach the result at
// `user[Name]` (§4.4).
type UserAttributeRule struct {
	Name        string
	TableID     string
	LookupColID string
	CharID      string
}
