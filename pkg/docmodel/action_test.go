package docmodel

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name ActionName
		want UserActionClass
	}{
		{ActionCalculate, ClassOK},
		{ActionAddView, ClassSpecial},
		{ActionRemoveView, ClassSurprising},
		{ActionBulkAddRecord, ClassData},
		{ActionAddTable, ClassDeferred},
	}
	for _, c := range cases {
		ua := UserAction{Name: c.name}
		if got := ua.Classify(); got != c.want {
			t.Errorf("Classify(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestScanRecursive(t *testing.T) {
	actions := []UserAction{
		{Name: ActionCalculate},
		{
			Name: ActionApplyUndoActions,
			Nested: []UserAction{
				{Name: ActionBulkAddRecord, TableID: "_grist_ACLRules"},
				{
					Name: ActionApplyDocActions,
					Nested: []UserAction{
						{Name: ActionRemoveColumn, TableID: "T"},
					},
				},
			},
		},
	}

	var seen []ActionName
	ScanRecursive(actions, func(a UserAction) {
		seen = append(seen, a.Name)
	})

	want := []ActionName{
		ActionCalculate,
		ActionApplyUndoActions,
		ActionBulkAddRecord,
		ActionApplyDocActions,
		ActionRemoveColumn,
	}
	if len(seen) != len(want) {
		t.Fatalf("scanned %d actions, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestIsStructuralTable(t *testing.T) {
	if !IsStructuralTable("_grist_Tables") {
		t.Error("_grist_Tables should be structural")
	}
	if IsStructuralTable("Orders") {
		t.Error("Orders should not be structural")
	}
}
