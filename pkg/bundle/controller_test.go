package bundle

import (
	"context"
	"testing"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/broadcast"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/userattr"
)

func alwaysTrueCompiler(string) (aclrule.Predicate, bool, error) {
	return aclrule.AlwaysTrue, true, nil
}

func newTestController(t *testing.T) (*Controller, *broadcast.InMemoryBroadcaster) {
	t.Helper()

	live := docmodel.NewDocData(nil)
	foo := docmodel.NewTable("Foo")
	foo.RowIDs = []int64{1, 2}
	foo.Columns["Name"] = []any{"alice", "bob"}
	live.SetTable(foo)

	auth := userattr.NewDocumentAuthorizer()
	_ = auth.Grant("owner1", "owner@example.com", "Owner", userattr.AccessOwner)
	_ = auth.Grant("viewer1", "viewer@example.com", "Viewer", userattr.AccessViewer)

	resolver := userattr.NewUserResolver(auth, nil, nil, nil, false)
	cache := userattr.NewSessionCache(context.Background(), userattr.NewMemoryCacheDriver())
	bc := broadcast.NewInMemoryBroadcaster()

	c := NewController(live, nil, alwaysTrueCompiler, auth, resolver, cache, bc, nil, 16)
	return c, bc
}

func TestBundleLifecycleHappyPath(t *testing.T) {
	c, bc := newTestController(t)
	ctx := context.Background()

	owner := userattr.Session{ID: "s1", UserID: "owner1"}
	c.Subscribe(owner)

	add := &docmodel.DocAction{
		Name:    docmodel.ActionUpdateRecord,
		TableID: "Foo",
		RowIDs:  []int64{1},
		Columns: map[string][]any{"Name": {"alice2"}},
	}

	if err := c.Begin(owner, nil, []*docmodel.DocAction{add}, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Begin(owner, nil, nil, nil); err == nil {
		t.Fatal("expected a second concurrent Begin to fail (invariant I1)")
	}
	if err := c.CanApplyBundle(ctx); err != nil {
		t.Fatalf("CanApplyBundle: %v", err)
	}
	if err := c.AppliedBundle(ctx); err != nil {
		t.Fatalf("AppliedBundle: %v", err)
	}
	if err := c.SendDocUpdateForBundle(ctx, &broadcast.ActionGroup{Desc: "edit"}); err != nil {
		t.Fatalf("SendDocUpdateForBundle: %v", err)
	}
	if err := c.FinishedBundle(ctx); err != nil {
		t.Fatalf("FinishedBundle: %v", err)
	}

	inbox := bc.Inbox("s1")
	if len(inbox) != 1 || inbox[0].Type != broadcast.MessageDocUserAction {
		t.Fatalf("expected one docUserAction message, got %+v", inbox)
	}

	if got := live(c).GetTable("Foo").Columns["Name"][0]; got != "alice2" {
		t.Fatalf("expected live doc data committed, got %v", got)
	}

	if err := c.Begin(owner, nil, nil, nil); err != nil {
		t.Fatalf("Begin should succeed again after FinishedBundle: %v", err)
	}
}

func live(c *Controller) *docmodel.DocData { return c.live }

func TestBundleDeliberateRuleChangeRequiresOwner(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	viewer := userattr.Session{ID: "s1", UserID: "viewer1"}
	userActions := []docmodel.UserAction{{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLRules"}}
	add := &docmodel.DocAction{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLRules", RowIDs: []int64{1}}

	if err := c.Begin(viewer, userActions, []*docmodel.DocAction{add}, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.CanApplyBundle(ctx); err == nil {
		t.Fatal("expected non-owner rule change to be denied")
	}

	// the controller should have collapsed back to idle and accept a
	// fresh bundle immediately.
	if err := c.Begin(viewer, nil, nil, nil); err != nil {
		t.Fatalf("expected idle state after denial, Begin failed: %v", err)
	}
}

func TestBundleNeedReloadOnDeliberateRuleChange(t *testing.T) {
	c, bc := newTestController(t)
	ctx := context.Background()

	owner := userattr.Session{ID: "s1", UserID: "owner1"}
	c.Subscribe(owner)

	userActions := []docmodel.UserAction{{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLRules"}}
	add := &docmodel.DocAction{Name: docmodel.ActionBulkAddRecord, TableID: "_grist_ACLRules", RowIDs: []int64{1}}

	if err := c.Begin(owner, userActions, []*docmodel.DocAction{add}, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.CanApplyBundle(ctx); err != nil {
		t.Fatalf("CanApplyBundle: %v", err)
	}
	if err := c.AppliedBundle(ctx); err != nil {
		t.Fatalf("AppliedBundle: %v", err)
	}
	if err := c.SendDocUpdateForBundle(ctx, nil); err != nil {
		t.Fatalf("SendDocUpdateForBundle: %v", err)
	}
	if err := c.FinishedBundle(ctx); err != nil {
		t.Fatalf("FinishedBundle: %v", err)
	}

	inbox := bc.Inbox("s1")
	if len(inbox) != 1 || inbox[0].Type != broadcast.MessageNeedReload {
		t.Fatalf("expected one needReload message, got %+v", inbox)
	}
}

func TestHasTableAccessDefaultsAllowWithNoRules(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	viewer := userattr.Session{ID: "s1", UserID: "viewer1"}

	ok, err := c.HasTableAccess(ctx, viewer, "Foo")
	if err != nil {
		t.Fatalf("HasTableAccess: %v", err)
	}
	if !ok {
		t.Fatal("expected default allow-all when no rules target Foo")
	}
}
