// Package permission implements the lazy, memoized rule evaluator
// (C2, PermissionInfo) and the per-session cache wrapping a compiled
// rule set (C4, Ruler).
package permission

import (
	"fmt"
	"sync"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
)

// PermissionInfo evaluates a resource (table, or table+column) to a
// PermissionSetWithContext for one user, optionally bound to a
// concrete row pair (§4.1). Results are memoized per resource;
// binding a record via WithRecord returns a fresh instance since
// per-row verdicts are not interchangeable with the unbound ones.
type PermissionInfo struct {
	rc      *aclrule.RuleCollection
	user    map[string]any
	rec     map[string]any
	newRec  map[string]any
	isOwner bool

	mu          sync.Mutex
	tableCache  map[string]aclrule.PermissionSetWithContext
	columnCache map[aclrule.ResourceKey]aclrule.PermissionSetWithContext
}

// New returns a PermissionInfo for user evaluated without a concrete
// record: predicates referencing rec/newRec contribute Mixed (§4.1).
func New(rc *aclrule.RuleCollection, user map[string]any, isOwner bool) *PermissionInfo {
	return &PermissionInfo{
		rc:          rc,
		user:        user,
		isOwner:     isOwner,
		tableCache:  map[string]aclrule.PermissionSetWithContext{},
		columnCache: map[aclrule.ResourceKey]aclrule.PermissionSetWithContext{},
	}
}

// WithRecord returns a PermissionInfo bound to rec (and, for an
// update, newRec) so every predicate can fully resolve (§4.1, "for
// requests with a record, all predicates are evaluable").
func (p *PermissionInfo) WithRecord(rec, newRec map[string]any) *PermissionInfo {
	return &PermissionInfo{
		rc:          p.rc,
		user:        p.user,
		isOwner:     p.isOwner,
		rec:         rec,
		newRec:      newRec,
		tableCache:  map[string]aclrule.PermissionSetWithContext{},
		columnCache: map[aclrule.ResourceKey]aclrule.PermissionSetWithContext{},
	}
}

// IsOwner reports whether the bound user holds the document owner role.
func (p *PermissionInfo) IsOwner() bool { return p.isOwner }

// RuleCollection exposes the compiled rules backing this PermissionInfo,
// for callers that need to inspect rule shape directly — e.g. the
// visibility dispatch's "mixedColumns only, no rec-dependent rule"
// classification (§4.8), which isn't expressible through
// GetTableAccess/GetColumnAccess alone.
func (p *PermissionInfo) RuleCollection() *aclrule.RuleCollection { return p.rc }

func (p *PermissionInfo) evalContext() aclrule.EvalContext {
	return aclrule.EvalContext{User: p.user, Rec: p.rec, NewRec: p.newRec}
}

// hasAnyRule reports whether any compiled rule targets key at all
// (matched or not) — presence alone is what flips a resource from
// "wide open" to "restricted", independent of ownership. Owners never
// reach this: GetTableAccess/GetColumnAccess/GetFullAccess short-circuit
// on p.isOwner before any rule lookup, so the default computed here
// only ever governs non-owners.
func (p *PermissionInfo) hasAnyRule(key aclrule.ResourceKey) bool {
	return len(p.rc.RulesFor(key)) > 0
}

// defaultForTable is the table-default rule: a table nobody has
// written an ACL rule for is fully open (matches hasNuancedAccess's
// "true iff rules exist" — no rules means no restriction); once any
// rule targets the table, an unresolved axis on it falls back to
// Deny, since a conditional allow rule is only meaningful if rows it
// doesn't match are hidden (§8 scenarios 2-3: a row with no matching
// rule is hidden, not shown).
func (p *PermissionInfo) defaultForTable(tableID string) aclrule.PermissionSet {
	if !p.hasAnyRule(aclrule.ResourceKey{TableID: tableID, ColID: aclrule.AllColumns}) {
		return aclrule.AllowAll()
	}
	return aclrule.DenyAll()
}

// defaultForColumn extends defaultForTable: a column is restricted if
// either its table or the column itself carries a rule.
func (p *PermissionInfo) defaultForColumn(tableID, colID string) aclrule.PermissionSet {
	if p.hasAnyRule(aclrule.ResourceKey{TableID: tableID, ColID: aclrule.AllColumns}) ||
		p.hasAnyRule(aclrule.ResourceKey{TableID: tableID, ColID: colID}) {
		return aclrule.DenyAll()
	}
	return aclrule.AllowAll()
}

// evalResource merges every compiled rule governing key, in
// declaration order, without applying the table-default resolution —
// callers apply that once, after combining table- and column-level
// deltas (GetColumnAccess needs both raw before defaulting).
func (p *PermissionInfo) evalResource(key aclrule.ResourceKey) (aclrule.PermissionSetWithContext, error) {
	ruleType := aclrule.RuleTypeTable
	if !key.IsTableLevel() {
		ruleType = aclrule.RuleTypeColumn
	}
	merged := aclrule.PermissionSetWithContext{RuleType: ruleType}
	for _, rule := range p.rc.RulesFor(key) {
		res, err := rule.Evaluate(p.evalContext())
		if err != nil {
			return merged, fmt.Errorf("evaluate %s: %w", key, err)
		}
		merged = merged.MergeWithContext(res)
	}
	return merged, nil
}

// rawTableAccess is evalResource for the table-level resource, cached
// independently of the defaulted value GetTableAccess returns.
func (p *PermissionInfo) rawTableAccess(tableID string) (aclrule.PermissionSetWithContext, error) {
	return p.evalResource(aclrule.ResourceKey{TableID: tableID, ColID: aclrule.AllColumns})
}

// GetTableAccess returns the merged, defaulted verdict for tableID as
// a whole (§4.1). An owner bypasses rule evaluation entirely and
// always sees an unconditional allow, per §4.1's "owner-allow, others
// as specified" table default and §6's hasFullAccess being synonymous
// with owner — centralized here so every caller (ingress, visibility,
// censorship) gets the bypass for free rather than needing its own
// IsOwner() check.
func (p *PermissionInfo) GetTableAccess(tableID string) (aclrule.PermissionSetWithContext, error) {
	if p.isOwner {
		return aclrule.PermissionSetWithContext{PermissionSet: aclrule.AllowAll(), RuleType: aclrule.RuleTypeTable}, nil
	}

	p.mu.Lock()
	if cached, ok := p.tableCache[tableID]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	raw, err := p.rawTableAccess(tableID)
	if err != nil {
		return raw, err
	}
	raw.PermissionSet = raw.PermissionSet.WithDefault(p.defaultForTable(tableID))

	p.mu.Lock()
	p.tableCache[tableID] = raw
	p.mu.Unlock()
	return raw, nil
}

// GetColumnAccess returns the merged, defaulted verdict for one
// column, combining the table-level delta with any column-specific
// rule before the table-default resolution is applied once (§4.1).
func (p *PermissionInfo) GetColumnAccess(tableID, colID string) (aclrule.PermissionSetWithContext, error) {
	if p.isOwner {
		return aclrule.PermissionSetWithContext{PermissionSet: aclrule.AllowAll(), RuleType: aclrule.RuleTypeColumn}, nil
	}

	key := aclrule.ResourceKey{TableID: tableID, ColID: colID}

	p.mu.Lock()
	if cached, ok := p.columnCache[key]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	tableRaw, err := p.rawTableAccess(tableID)
	if err != nil {
		return tableRaw, err
	}
	colRaw, err := p.evalResource(key)
	if err != nil {
		return colRaw, err
	}

	merged := tableRaw.MergeWithContext(colRaw)
	merged.PermissionSet = merged.PermissionSet.WithDefault(p.defaultForColumn(tableID, colID))

	p.mu.Lock()
	p.columnCache[key] = merged
	p.mu.Unlock()
	return merged, nil
}

// GetFullAccess reports whether every table-level resource resolves
// to an unconditional allow on every axis, the document-wide summary
// backing canReadEverything/hasFullAccess-style checks (§4.1).
func (p *PermissionInfo) GetFullAccess() (aclrule.PermissionSetWithContext, error) {
	if p.isOwner {
		return aclrule.PermissionSetWithContext{PermissionSet: aclrule.AllowAll(), RuleType: aclrule.RuleTypeTable}, nil
	}

	overall := aclrule.PermissionSetWithContext{PermissionSet: aclrule.AllowAll()}
	for _, key := range p.rc.Resources() {
		if !key.IsTableLevel() {
			continue
		}
		ta, err := p.GetTableAccess(key.TableID)
		if err != nil {
			return ta, err
		}
		overall = overall.MergeWithContext(ta)
	}
	return overall, nil
}
