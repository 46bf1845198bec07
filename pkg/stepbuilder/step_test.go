package stepbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

func buildLiveDocData() *docmodel.DocData {
	d := docmodel.NewDocData(nil)
	items := docmodel.NewTable("Items")
	items.RowIDs = []int64{1, 2}
	items.Columns["name"] = []any{"a", "b"}
	d.SetTable(items)
	return d
}

func TestStepBuilderRowsBeforeAfter(t *testing.T) {
	live := buildLiveDocData()
	b := New(live, nil, nil, nil)

	bundle := Bundle{
		DocActions: []*docmodel.DocAction{
			{
				Name: docmodel.ActionUpdateRecord, TableID: "Items",
				RowIDs:  []int64{1},
				Columns: map[string][]any{"name": {"a2"}},
			},
		},
	}

	steps, err := b.GetSteps(context.Background(), bundle)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	step := steps[0]
	assert.Equal(t, "a", step.RowsBefore.Columns["name"][0])
	assert.Equal(t, "a2", step.RowsAfter.Columns["name"][0])
	assert.Nil(t, step.MetaBefore)
	assert.NotNil(t, step.Ruler)
}

func TestStepBuilderMemoizesAcrossCalls(t *testing.T) {
	live := buildLiveDocData()
	b := New(live, nil, nil, nil)
	bundle := Bundle{DocActions: []*docmodel.DocAction{
		{Name: docmodel.ActionUpdateRecord, TableID: "Items", RowIDs: []int64{1}, Columns: map[string][]any{"name": {"a2"}}},
	}}

	first, err := b.GetSteps(context.Background(), bundle)
	require.NoError(t, err)
	second, err := b.GetSteps(context.Background(), Bundle{})
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])
}

func TestStepBuilderRebuildsRulerAfterACLBatch(t *testing.T) {
	live := buildLiveDocData()
	tables := docmodel.NewTable("_grist_Tables")
	tables.RowIDs = []int64{1}
	tables.Columns["tableId"] = []any{"Items"}
	live.SetTable(tables)

	b := New(live, nil, nil, nil)

	aclResources := &docmodel.DocAction{
		Name: docmodel.ActionTableData, TableID: "_grist_ACLResources",
		RowIDs:  []int64{1},
		Columns: map[string][]any{"tableId": {"Items"}, "colIds": {"*"}},
	}
	aclRules := &docmodel.DocAction{
		Name: docmodel.ActionTableData, TableID: "_grist_ACLRules",
		RowIDs:  []int64{1},
		Columns: map[string][]any{"resource": {int64(1)}, "aclFormula": {""}, "permissions": {"-R"}},
	}
	unrelated := &docmodel.DocAction{
		Name: docmodel.ActionUpdateRecord, TableID: "Items",
		RowIDs: []int64{1}, Columns: map[string][]any{"name": {"a3"}},
	}

	bundle := Bundle{DocActions: []*docmodel.DocAction{aclResources, aclRules, unrelated}}
	steps, err := b.GetSteps(context.Background(), bundle)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Same(t, steps[0].Ruler, steps[1].Ruler, "ruler should not swap mid ACL-table batch")
	assert.NotSame(t, steps[1].Ruler, steps[2].Ruler, "ruler should swap once the ACL batch ends")
	assert.True(t, steps[2].Ruler.RuleCollection().HaveRules())
	assert.False(t, steps[0].Ruler.RuleCollection().HaveRules())
}
