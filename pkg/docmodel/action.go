// Package docmodel defines the document snapshot shape the GAC engine
// reasons about: columnar tables, DocActions, and UserActions.
package docmodel

// ActionName is the tagged name carried by every DocAction/UserAction.
// Matched against the closed classification sets in §3 by string
// comparison, the way the real engine does it (no reflection over Go
// types), so host-supplied actions can keep arriving as plain records.
type ActionName string

const (
	ActionAddRecord         ActionName = "AddRecord"
	ActionBulkAddRecord     ActionName = "BulkAddRecord"
	ActionUpdateRecord      ActionName = "UpdateRecord"
	ActionBulkUpdateRecord  ActionName = "BulkUpdateRecord"
	ActionRemoveRecord      ActionName = "RemoveRecord"
	ActionBulkRemoveRecord  ActionName = "BulkRemoveRecord"
	ActionReplaceTableData  ActionName = "ReplaceTableData"
	ActionTableData         ActionName = "TableData"
	ActionAddTable          ActionName = "AddTable"
	ActionRemoveTable       ActionName = "RemoveTable"
	ActionRenameTable       ActionName = "RenameTable"
	ActionAddColumn         ActionName = "AddColumn"
	ActionRemoveColumn      ActionName = "RemoveColumn"
	ActionRenameColumn      ActionName = "RenameColumn"
	ActionModifyColumn      ActionName = "ModifyColumn"

	ActionCalculate                  ActionName = "Calculate"
	ActionInitNewDoc                 ActionName = "InitNewDoc"
	ActionEvalCode                   ActionName = "EvalCode"
	ActionSetDisplayFormula          ActionName = "SetDisplayFormula"
	ActionUpdateSummaryViewSection   ActionName = "UpdateSummaryViewSection"
	ActionDetachSummaryViewSection   ActionName = "DetachSummaryViewSection"
	ActionGenImporterView            ActionName = "GenImporterView"
	ActionTransformAndFinishImport   ActionName = "TransformAndFinishImport"
	ActionAddView                    ActionName = "AddView"
	ActionCopyFromColumn             ActionName = "CopyFromColumn"
	ActionAddHiddenColumn            ActionName = "AddHiddenColumn"
	ActionRemoveView                 ActionName = "RemoveView"
	ActionAddViewSection             ActionName = "AddViewSection"
	ActionApplyUndoActions           ActionName = "ApplyUndoActions"
	ActionApplyDocActions            ActionName = "ApplyDocActions"
)

// rowActionNames carries cells and row ids; bulk variants carry many rows.
var rowActionNames = map[ActionName]bool{
	ActionAddRecord:        true,
	ActionBulkAddRecord:    true,
	ActionUpdateRecord:     true,
	ActionBulkUpdateRecord: true,
	ActionRemoveRecord:     true,
	ActionBulkRemoveRecord: true,
	ActionReplaceTableData: true,
	ActionTableData:        true,
}

var bulkActionNames = map[ActionName]bool{
	ActionBulkAddRecord:    true,
	ActionBulkUpdateRecord: true,
	ActionBulkRemoveRecord: true,
	ActionReplaceTableData: true,
	ActionTableData:        true,
}

var addActionNames = map[ActionName]bool{
	ActionAddRecord:        true,
	ActionBulkAddRecord:    true,
	ActionReplaceTableData: true,
	ActionTableData:        true,
}

var removeActionNames = map[ActionName]bool{
	ActionRemoveRecord:     true,
	ActionBulkRemoveRecord: true,
}

var updateActionNames = map[ActionName]bool{
	ActionUpdateRecord:     true,
	ActionBulkUpdateRecord: true,
}

var columnSchemaActionNames = map[ActionName]bool{
	ActionAddColumn:    true,
	ActionRemoveColumn: true,
	ActionRenameColumn: true,
	ActionModifyColumn: true,
}

// structuralTables are the seven fixed, privileged tables (§3).
var structuralTables = map[string]bool{
	"_grist_Tables":               true,
	"_grist_Tables_column":        true,
	"_grist_Views":                true,
	"_grist_Views_section":        true,
	"_grist_Views_section_field":  true,
	"_grist_ACLResources":         true,
	"_grist_ACLRules":             true,
}

// IsStructuralTable reports whether tableID names one of the seven
// fixed structural tables.
func IsStructuralTable(tableID string) bool {
	return structuralTables[tableID]
}

// StructuralTableIDs returns the set of the seven fixed structural
// table ids, for callers that need to seed or iterate all of them.
func StructuralTableIDs() map[string]bool {
	out := make(map[string]bool, len(structuralTables))
	for id := range structuralTables {
		out[id] = true
	}
	return out
}

// DocAction is a tagged variant over row ops and schema ops (§3). Row
// and column values are represented generically so the engine never
// needs to know the document's cell type system.
type DocAction struct {
	Name    ActionName
	TableID string

	// Row-carrying shape (AddRecord/UpdateRecord/... and bulk variants).
	RowIDs  []int64
	Columns map[string][]any // colID -> per-row values, aligned with RowIDs

	// Schema-op shape (AddColumn/RenameColumn/...).
	ColID    string
	NewColID string
	NewName  string
	ColSpec  map[string]any
}

// IsRowAction reports whether a is one of the cell-carrying row ops.
func (a *DocAction) IsRowAction() bool { return rowActionNames[a.Name] }

// IsBulk reports whether a carries more than one row per action.
func (a *DocAction) IsBulk() bool { return bulkActionNames[a.Name] }

// IsAdd reports whether a introduces new rows (full post-state).
func (a *DocAction) IsAdd() bool { return addActionNames[a.Name] }

// IsRemove reports whether a is a pure row removal.
func (a *DocAction) IsRemove() bool { return removeActionNames[a.Name] }

// IsUpdate reports whether a updates existing rows in place.
func (a *DocAction) IsUpdate() bool { return updateActionNames[a.Name] }

// IsColumnSchemaOp reports whether a adds/removes/renames/modifies a
// single column (§4.6).
func (a *DocAction) IsColumnSchemaOp() bool { return columnSchemaActionNames[a.Name] }

// IsSchemaOp reports whether a mutates table/column structure rather
// than row data.
func (a *DocAction) IsSchemaOp() bool {
	return !a.IsRowAction()
}

// GetTableID recovers the action's target table — every DocAction
// carries one (§3).
func (a *DocAction) GetTableID() string { return a.TableID }

// Clone returns a deep copy safe to mutate independently of a.
func (a *DocAction) Clone() *DocAction {
	if a == nil {
		return nil
	}
	out := *a
	if a.RowIDs != nil {
		out.RowIDs = append([]int64(nil), a.RowIDs...)
	}
	if a.Columns != nil {
		out.Columns = make(map[string][]any, len(a.Columns))
		for col, vals := range a.Columns {
			out.Columns[col] = append([]any(nil), vals...)
		}
	}
	if a.ColSpec != nil {
		out.ColSpec = make(map[string]any, len(a.ColSpec))
		for k, v := range a.ColSpec {
			out.ColSpec[k] = v
		}
	}
	return &out
}

// UserActionClass buckets a UserAction for ingress checking (§3).
type UserActionClass int

const (
	ClassOK UserActionClass = iota
	ClassSpecial
	ClassSurprising
	ClassData
	ClassDeferred
)

var okActions = map[ActionName]bool{ActionCalculate: true}

var specialActions = map[ActionName]bool{
	ActionInitNewDoc:               true,
	ActionEvalCode:                 true,
	ActionSetDisplayFormula:        true,
	ActionUpdateSummaryViewSection: true,
	ActionDetachSummaryViewSection: true,
	ActionGenImporterView:          true,
	ActionTransformAndFinishImport: true,
	ActionAddView:                  true,
	ActionCopyFromColumn:           true,
	ActionAddHiddenColumn:          true,
}

var surprisingActions = map[ActionName]bool{
	ActionRemoveView:     true,
	ActionAddViewSection: true,
}

// UserAction is a higher-level command the data engine lowers to
// DocActions. ApplyUndoActions/ApplyDocActions carry a nested action
// list and must be scanned recursively (§9).
type UserAction struct {
	Name    ActionName
	TableID string
	Nested  []UserAction // populated only for ApplyUndoActions/ApplyDocActions
}

// Classify buckets a by the closed sets in §3.
func (a UserAction) Classify() UserActionClass {
	switch {
	case okActions[a.Name]:
		return ClassOK
	case specialActions[a.Name]:
		return ClassSpecial
	case surprisingActions[a.Name]:
		return ClassSurprising
	case rowActionNames[a.Name]:
		return ClassData
	default:
		return ClassDeferred
	}
}

// IsRecursiveContainer reports whether a's payload is itself a nested
// action list.
func (a UserAction) IsRecursiveContainer() bool {
	return a.Name == ActionApplyUndoActions || a.Name == ActionApplyDocActions
}

// ScanRecursive walks a and every action nested (at any depth) inside
// ApplyUndoActions/ApplyDocActions containers, calling visit on each.
// Used by hasDeliberateRuleChange (§9) and similar bundle-wide scans.
func ScanRecursive(actions []UserAction, visit func(UserAction)) {
	for _, a := range actions {
		visit(a)
		if a.IsRecursiveContainer() {
			ScanRecursive(a.Nested, visit)
		}
	}
}
