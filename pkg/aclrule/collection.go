package aclrule

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

// FormulaCompiler turns a rule's formula text into a predicate plus
// whether that predicate depends on a concrete record. The rule
// language itself is out of scope (§1); this is the seam the engine
// injects a real compiler through.
type FormulaCompiler func(formulaText string) (pred Predicate, recordDependent bool, err error)

// RuleDiagnostic is one compile failure surfaced alongside the single
// ruleError, so a host UI can show every problem instead of just the
// first (SPEC_FULL.md supplemented feature #2).
type RuleDiagnostic struct {
	Resource  ResourceKey
	RuleIndex int
	Message   string
}

// RuleCollection is the compiled rule store built from the four
// ACL-relevant structural tables (C3). Construction never throws —
// failures are recorded in RuleErr/Diagnostics so the engine can fail
// gracefully per §4.2.
type RuleCollection struct {
	byResource map[ResourceKey][]*AclRule
	userAttrs  []UserAttributeRule
	haveRules  bool

	ruleErr     error
	diagnostics []RuleDiagnostic
}

// aclResourceRow mirrors one row of _grist_ACLResources.
type aclResourceRow struct {
	RowID   int64
	TableID string
	ColIDs  string // comma-separated, "*" for whole table
}

// aclRuleRow mirrors one row of _grist_ACLRules.
type aclRuleRow struct {
	RowID      int64
	ResourceID int64 // rowId in _grist_ACLResources, or 0 for a user-attribute rule
	AclFormula string
	Permissions string // e.g. "+R-U" style delta encoding; see parsePermissions
	MemoText   string
	// user-attribute rule fields, populated when ResourceID == 0
	UserAttributes string // JSON: {name, tableId, lookupColId, charId}
}

// NewRuleCollection builds a RuleCollection from the four structural
// tables inside docData (_grist_ACLResources, _grist_ACLRules; the
// table/column definition tables are consulted by checkDocEntities).
// compiler turns formula text into predicates. A nil docData or
// missing rule tables yields an empty, rule-free collection.
func NewRuleCollection(docData *docmodel.DocData, compiler FormulaCompiler) *RuleCollection {
	rc := &RuleCollection{byResource: map[ResourceKey][]*AclRule{}}
	if docData == nil {
		return rc
	}

	resourcesTable := docData.GetTable("_grist_ACLResources")
	rulesTable := docData.GetTable("_grist_ACLRules")
	if resourcesTable == nil || rulesTable == nil {
		return rc
	}

	resources := decodeResources(resourcesTable)
	rules := decodeRules(rulesTable)

	for i, row := range rules {
		if row.UserAttributes != "" {
			attr, err := parseUserAttribute(row.UserAttributes)
			if err != nil {
				rc.diagnostics = append(rc.diagnostics, RuleDiagnostic{RuleIndex: i, Message: err.Error()})
				continue
			}
			rc.userAttrs = append(rc.userAttrs, attr)
			continue
		}

		resourceRow, ok := resources[row.ResourceID]
		if !ok {
			rc.diagnostics = append(rc.diagnostics, RuleDiagnostic{RuleIndex: i, Message: fmt.Sprintf("rule references unknown resource id %d", row.ResourceID)})
			continue
		}

		delta, err := parsePermissions(row.Permissions)
		if err != nil {
			rc.diagnostics = append(rc.diagnostics, RuleDiagnostic{RuleIndex: i, Message: err.Error()})
			continue
		}

		var pred Predicate
		recordDependent := false
		if compiler == nil || row.AclFormula == "" {
			pred = AlwaysTrue
		} else {
			pred, recordDependent, err = compiler(row.AclFormula)
			if err != nil {
				rc.diagnostics = append(rc.diagnostics, RuleDiagnostic{RuleIndex: i, Message: err.Error()})
				continue
			}
		}

		// A resource row may list several column ids ("colIds" is
		// comma-separated); the same compiled rule governs each one.
		for _, key := range resourceRow.expand() {
			ruleType := RuleTypeTable
			if !key.IsTableLevel() {
				ruleType = RuleTypeColumn
			}

			rc.haveRules = true
			rc.byResource[key] = append(rc.byResource[key], &AclRule{
				Resource:        key,
				RuleType:        ruleType,
				Predicate:       pred,
				RecordDependent: recordDependent,
				Delta:           delta,
				Memo:            row.MemoText,
			})
		}
	}

	if len(rc.diagnostics) > 0 {
		rc.ruleErr = fmt.Errorf("%d ACL rule(s) failed to compile: %s", len(rc.diagnostics), rc.diagnostics[0].Message)
	}

	return rc
}

// HaveRules reports whether any table/column rule was successfully
// compiled (used by hasNuancedAccess, §6).
func (rc *RuleCollection) HaveRules() bool {
	return rc.haveRules
}

// RulesFor returns the compiled rules governing resource, in
// declaration order.
func (rc *RuleCollection) RulesFor(resource ResourceKey) []*AclRule {
	return rc.byResource[resource]
}

// Resources returns every resource that has at least one rule,
// sorted for deterministic iteration.
func (rc *RuleCollection) Resources() []ResourceKey {
	keys := make([]ResourceKey, 0, len(rc.byResource))
	for k := range rc.byResource {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TableID != keys[j].TableID {
			return keys[i].TableID < keys[j].TableID
		}
		return keys[i].ColID < keys[j].ColID
	})
	return keys
}

// GetUserAttributeRules returns the user-attribute rules found in the
// rule tables (§4.4 step 3).
func (rc *RuleCollection) GetUserAttributeRules() []UserAttributeRule {
	return rc.userAttrs
}

// RuleError returns the first compile failure, or nil if every rule
// compiled successfully. Per §4.2, construction itself never throws;
// this is what the engine consults before resolving a user.
func (rc *RuleCollection) RuleError() error {
	return rc.ruleErr
}

// Diagnostics returns every compile failure, not just the first
// (SPEC_FULL.md supplemented feature #2).
func (rc *RuleCollection) Diagnostics() []RuleDiagnostic {
	return rc.diagnostics
}

// CheckDocEntities runs the structural cross-check: every resource a
// rule references must name a table/column that actually exists in
// docData (§4.2). Returns a descriptive error on the first violation.
func (rc *RuleCollection) CheckDocEntities(docData *docmodel.DocData) error {
	tablesTable := docData.GetTable("_grist_Tables")
	columnsTable := docData.GetTable("_grist_Tables_column")

	// _grist_Tables_column.parentId is an int64 row-ref into
	// _grist_Tables (matching internal/storedoc's gristColumn.ParentID
	// and censorship.Compute's tableIDByRef), not a table id string —
	// resolve it through the live table rows the same way.
	tableIDByRef := map[int64]string{}
	liveTables := map[string]bool{}
	if tablesTable != nil {
		if ids, ok := tablesTable.Columns["tableId"]; ok {
			for i, rowID := range tablesTable.RowIDs {
				var tableID string
				if i < len(ids) {
					tableID, _ = ids[i].(string)
				}
				if tableID != "" {
					liveTables[tableID] = true
					tableIDByRef[rowID] = tableID
				}
			}
		}
	}

	liveColumns := map[string]bool{} // "tableId.colId"
	if columnsTable != nil {
		parentIDs := columnsTable.Columns["parentId"]
		colIDs := columnsTable.Columns["colId"]
		for i := range columnsTable.RowIDs {
			var parentRef int64
			if i < len(parentIDs) {
				parentRef = asInt64(parentIDs[i])
			}
			var colID string
			if i < len(colIDs) {
				colID, _ = colIDs[i].(string)
			}
			tableID := tableIDByRef[parentRef]
			if tableID != "" && colID != "" {
				liveColumns[tableID+"."+colID] = true
			}
		}
	}

	for _, resource := range rc.Resources() {
		if !liveTables[resource.TableID] && !docmodel.IsStructuralTable(resource.TableID) {
			return fmt.Errorf("ACL rule references unknown table %q", resource.TableID)
		}
		if !resource.IsTableLevel() {
			if !liveColumns[resource.TableID+"."+resource.ColID] {
				return fmt.Errorf("ACL rule references unknown column %q on table %q", resource.ColID, resource.TableID)
			}
		}
	}
	return nil
}
