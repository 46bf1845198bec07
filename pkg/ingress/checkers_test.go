package ingress

import (
	"testing"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

func TestCheckUserActionBuckets(t *testing.T) {
	tests := []struct {
		name             string
		action           docmodel.UserAction
		hasNuancedAccess bool
		hasFullAccess    bool
		wantErr          bool
	}{
		{"ok always passes", docmodel.UserAction{Name: docmodel.ActionCalculate}, true, false, false},
		{"special blocked under nuanced access", docmodel.UserAction{Name: docmodel.ActionAddView}, true, false, true},
		{"special allowed without nuanced access", docmodel.UserAction{Name: docmodel.ActionAddView}, false, false, false},
		{"surprising needs full access", docmodel.UserAction{Name: docmodel.ActionRemoveView}, false, false, true},
		{"surprising allowed for full access", docmodel.UserAction{Name: docmodel.ActionRemoveView}, false, true, false},
		{"data bucket passes here", docmodel.UserAction{Name: docmodel.ActionBulkAddRecord}, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUserAction(tt.action, tt.hasNuancedAccess, tt.hasFullAccess)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckUserAction() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssertCanMaybeApplyUserActionsDecidability(t *testing.T) {
	okOnly := []docmodel.UserAction{{Name: docmodel.ActionCalculate}}
	decidable, err := AssertCanMaybeApplyUserActions(okOnly, false, false)
	if err != nil || !decidable {
		t.Fatalf("expected decidable=true err=nil, got decidable=%v err=%v", decidable, err)
	}

	withData := []docmodel.UserAction{
		{Name: docmodel.ActionCalculate},
		{Name: docmodel.ActionBulkAddRecord, TableID: "Foo"},
	}
	decidable, err = AssertCanMaybeApplyUserActions(withData, false, false)
	if err != nil || decidable {
		t.Fatalf("expected decidable=false err=nil, got decidable=%v err=%v", decidable, err)
	}

	surprising := []docmodel.UserAction{{Name: docmodel.ActionRemoveView}}
	if _, err := AssertCanMaybeApplyUserActions(surprising, false, false); err == nil {
		t.Fatal("expected a hard denial for a surprising action without full access")
	}
}

func TestAssertCanMaybeApplyUserActionsRecursesNestedContainers(t *testing.T) {
	nested := []docmodel.UserAction{
		{
			Name: docmodel.ActionApplyUndoActions,
			Nested: []docmodel.UserAction{
				{Name: docmodel.ActionRemoveView},
			},
		},
	}
	if _, err := AssertCanMaybeApplyUserActions(nested, false, false); err == nil {
		t.Fatal("expected the nested surprising action to be caught")
	}
}

func TestHasDeliberateRuleChange(t *testing.T) {
	noRuleChange := []docmodel.UserAction{{Name: docmodel.ActionCalculate, TableID: "Foo"}}
	if HasDeliberateRuleChange(noRuleChange) {
		t.Fatal("expected no deliberate rule change")
	}

	direct := []docmodel.UserAction{{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLRules"}}
	if !HasDeliberateRuleChange(direct) {
		t.Fatal("expected a deliberate rule change from a direct ACLRules edit")
	}

	nested := []docmodel.UserAction{
		{
			Name: docmodel.ActionApplyDocActions,
			Nested: []docmodel.UserAction{
				{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLResources"},
			},
		},
	}
	if !HasDeliberateRuleChange(nested) {
		t.Fatal("expected a deliberate rule change found inside a nested container")
	}
}

func TestCanScanData(t *testing.T) {
	if CanScanData(false, false) {
		t.Fatal("neither owner nor full reader should not be able to scan")
	}
	if !CanScanData(true, false) {
		t.Fatal("owner should be able to scan")
	}
	if !CanScanData(false, true) {
		t.Fatal("a full reader should be able to scan")
	}
}
