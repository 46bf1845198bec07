package censorship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

func denyTableB(formula string) (aclrule.Predicate, bool, error) {
	return aclrule.AlwaysTrue, false, nil
}

func buildMeta(t *testing.T) *docmodel.DocData {
	t.Helper()
	d := docmodel.NewDocData(nil)

	tables := docmodel.NewTable("_grist_Tables")
	tables.RowIDs = []int64{1, 2}
	tables.Columns["tableId"] = []any{"A", "B"}
	d.SetTable(tables)

	cols := docmodel.NewTable("_grist_Tables_column")
	cols.RowIDs = []int64{10, 11, 12}
	cols.Columns["parentId"] = []any{int64(1), int64(2), int64(2)}
	cols.Columns["colId"] = []any{"x", "y", "manualSort"}
	cols.Columns["label"] = []any{"X", "Y", ""}
	d.SetTable(cols)

	views := docmodel.NewTable("_grist_Views")
	views.RowIDs = []int64{100}
	views.Columns["name"] = []any{"View1"}
	d.SetTable(views)

	sections := docmodel.NewTable("_grist_Views_section")
	sections.RowIDs = []int64{200}
	sections.Columns["tableRef"] = []any{int64(2)}
	sections.Columns["parentId"] = []any{int64(100)}
	sections.Columns["title"] = []any{"Section B"}
	d.SetTable(sections)

	fields := docmodel.NewTable("_grist_Views_section_field")
	fields.RowIDs = []int64{300}
	fields.Columns["parentId"] = []any{int64(200)}
	fields.Columns["colRef"] = []any{int64(11)}
	fields.Columns["widgetOptions"] = []any{"{}"}
	d.SetTable(fields)

	aclResources := docmodel.NewTable("_grist_ACLResources")
	aclResources.RowIDs = []int64{1}
	aclResources.Columns["tableId"] = []any{"B"}
	aclResources.Columns["colIds"] = []any{"*"}
	d.SetTable(aclResources)

	aclRules := docmodel.NewTable("_grist_ACLRules")
	aclRules.RowIDs = []int64{1}
	aclRules.Columns["resource"] = []any{int64(1)}
	aclRules.Columns["aclFormula"] = []any{""}
	aclRules.Columns["permissions"] = []any{"-R"}
	d.SetTable(aclRules)

	return d
}

func TestComputeAndRewriteNonOwnerCensorsTableB(t *testing.T) {
	meta := buildMeta(t)
	rc := aclrule.NewRuleCollection(meta, denyTableB)
	viewer := permission.New(rc, map[string]any{"UserID": "u2"}, false)

	info, err := Compute(meta, viewer)
	require.NoError(t, err)

	assert.True(t, info.CensoredTableRefs[2], "table B should be censored")
	assert.False(t, info.CensoredTableRefs[1], "table A should not be censored")
	assert.True(t, info.CensoredColumnRows[11], "column row for B.y should be censored")
	assert.False(t, info.CensoredColumnRows[10], "column row for A.x should not be censored")
	assert.False(t, info.CensoredColumnRows[12], "manualSort is exempt")
	assert.True(t, info.CensoredSectionRows[200])
	assert.True(t, info.CensoredViewRows[100])
	assert.True(t, info.CensoredFieldRows[300])

	tablesAction := &docmodel.DocAction{
		Name: docmodel.ActionTableData, TableID: "_grist_Tables",
		RowIDs:  []int64{1, 2},
		Columns: map[string][]any{"tableId": {"A", "B"}},
	}
	rewritten := RewriteAction(tablesAction, info, false)
	assert.Equal(t, "A", rewritten.Columns["tableId"][0])
	assert.Equal(t, "", rewritten.Columns["tableId"][1])

	aclAction := &docmodel.DocAction{
		Name: docmodel.ActionTableData, TableID: "_grist_ACLRules",
		RowIDs:  []int64{1},
		Columns: map[string][]any{"permissions": {"-R"}},
	}
	suppressed := RewriteAction(aclAction, info, false)
	assert.Empty(t, suppressed.RowIDs)
	assert.Empty(t, suppressed.Columns)

	passthrough := RewriteAction(aclAction, info, true)
	assert.Equal(t, []int64{1}, passthrough.RowIDs)
}
