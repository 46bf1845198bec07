package permission

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

// statusCompiler is a tiny stand-in FormulaCompiler recognizing two
// formula shapes used by these tests: "rec.status == \"<v>\"" (record
// dependent) and "" (always true, not record dependent).
func statusCompiler(formula string) (aclrule.Predicate, bool, error) {
	if formula == "" {
		return aclrule.AlwaysTrue, false, nil
	}
	if strings.HasPrefix(formula, "rec.status==") {
		want := strings.TrimPrefix(formula, "rec.status==")
		pred := func(ctx aclrule.EvalContext) (bool, error) {
			if ctx.Rec == nil {
				return false, nil
			}
			v, _ := ctx.Rec["status"].(string)
			return v == want, nil
		}
		return pred, true, nil
	}
	return aclrule.AlwaysTrue, false, nil
}

func buildCollection(t *testing.T, resources []map[string]any, rules []map[string]any) *aclrule.RuleCollection {
	t.Helper()
	d := docmodel.NewDocData(nil)

	resTable := docmodel.NewTable("_grist_ACLResources")
	resTable.Columns["tableId"] = make([]any, len(resources))
	resTable.Columns["colIds"] = make([]any, len(resources))
	for i, r := range resources {
		resTable.RowIDs = append(resTable.RowIDs, int64(i+1))
		resTable.Columns["tableId"][i] = r["tableId"]
		resTable.Columns["colIds"][i] = r["colIds"]
	}
	d.SetTable(resTable)

	ruleTable := docmodel.NewTable("_grist_ACLRules")
	ruleTable.Columns["resource"] = make([]any, len(rules))
	ruleTable.Columns["aclFormula"] = make([]any, len(rules))
	ruleTable.Columns["permissions"] = make([]any, len(rules))
	ruleTable.Columns["memo"] = make([]any, len(rules))
	for i, r := range rules {
		ruleTable.RowIDs = append(ruleTable.RowIDs, int64(i+1))
		ruleTable.Columns["resource"][i] = r["resource"]
		ruleTable.Columns["aclFormula"][i] = r["aclFormula"]
		ruleTable.Columns["permissions"][i] = r["permissions"]
		ruleTable.Columns["memo"][i] = r["memo"]
	}
	d.SetTable(ruleTable)

	rc := aclrule.NewRuleCollection(d, statusCompiler)
	require.NoError(t, rc.RuleError())
	return rc
}

func TestPermissionInfoColumnDenyReadForNonOwner(t *testing.T) {
	rc := buildCollection(t,
		[]map[string]any{{"tableId": "T", "colIds": "secret"}},
		[]map[string]any{{"resource": int64(1), "aclFormula": "", "permissions": "-R", "memo": "hidden from non-owners"}},
	)

	pi := New(rc, map[string]any{"UserID": "u2"}, false)
	access, err := pi.GetColumnAccess("T", "secret")
	require.NoError(t, err)
	assert.Equal(t, aclrule.Deny, access.Read)
	assert.Equal(t, []string{"hidden from non-owners"}, access.Memos)

	// An unrelated column stays fully open.
	other, err := pi.GetColumnAccess("T", "public")
	require.NoError(t, err)
	assert.Equal(t, aclrule.Allow, other.Read)
}

func TestPermissionInfoRowBecomesVisibleViaRecord(t *testing.T) {
	rc := buildCollection(t,
		[]map[string]any{{"tableId": "T", "colIds": "*"}},
		[]map[string]any{{"resource": int64(1), "aclFormula": "rec.status==open", "permissions": "+R"}},
	)

	unbound := New(rc, map[string]any{"UserID": "u2"}, false)
	ta, err := unbound.GetTableAccess("T")
	require.NoError(t, err)
	assert.Equal(t, aclrule.Mixed, ta.Read, "no concrete record: record-dependent rule must contribute mixed")

	hidden := unbound.WithRecord(map[string]any{"status": "draft"}, nil)
	hiddenAccess, err := hidden.GetTableAccess("T")
	require.NoError(t, err)
	assert.Equal(t, aclrule.Deny, hiddenAccess.Read, "no matching allow rule for a draft row defaults to deny under this resource's restriction")

	visible := unbound.WithRecord(map[string]any{"status": "open"}, nil)
	visibleAccess, err := visible.GetTableAccess("T")
	require.NoError(t, err)
	assert.Equal(t, aclrule.Allow, visibleAccess.Read)
}

func TestPermissionInfoMemoization(t *testing.T) {
	rc := buildCollection(t, nil, nil)
	pi := New(rc, map[string]any{"UserID": "u1"}, true)
	first, err := pi.GetTableAccess("Anything")
	require.NoError(t, err)
	second, err := pi.GetTableAccess("Anything")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, aclrule.Allow, first.Read)
}

func TestPermissionInfoFullAccessFalseWhenAnyTableDenied(t *testing.T) {
	rc := buildCollection(t,
		[]map[string]any{{"tableId": "Secrets", "colIds": "*"}},
		[]map[string]any{{"resource": int64(1), "aclFormula": "", "permissions": "-R"}},
	)
	pi := New(rc, map[string]any{"UserID": "u2"}, false)
	full, err := pi.GetFullAccess()
	require.NoError(t, err)
	assert.Equal(t, aclrule.Deny, full.Read)
}

func TestRulerClearCacheDropsMemoizedPermissionInfo(t *testing.T) {
	rc := buildCollection(t, nil, nil)
	r := NewRuler(rc)
	pi1 := r.GetPermissionInfo("sess-1", map[string]any{"UserID": "u1"}, false)
	pi2 := r.GetPermissionInfo("sess-1", map[string]any{"UserID": "u1"}, false)
	assert.Same(t, pi1, pi2)

	r.ClearCache()
	pi3 := r.GetPermissionInfo("sess-1", map[string]any{"UserID": "u1"}, false)
	assert.NotSame(t, pi1, pi3)
}
