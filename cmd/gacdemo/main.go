// Command gacdemo is a minimal host harness that wires the GAC engine
// end to end: it seeds a structural-metadata store, opens a bundle
// carrying a row add that touches a column one viewer may not read,
// and prints what each subscriber actually receives (§8 scenario 1,
// "deny-read column").
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/kasuganosora/gacengine/internal/storedoc"
	"github.com/kasuganosora/gacengine/pkg/broadcast"
	"github.com/kasuganosora/gacengine/pkg/bundle"
	"github.com/kasuganosora/gacengine/pkg/config"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/logging"
	"github.com/kasuganosora/gacengine/pkg/userattr"
)

func main() {
	cfg := config.LoadConfigOrDefault()
	logger := logging.NewDefaultLogger(logLevel(cfg.Log.Level))

	// The demo harness keeps its structural store ephemeral; a real
	// host would pass cfg.Store.Path here instead.
	store, err := storedoc.Open(":memory:")
	if err != nil {
		log.Fatalf("open structural store: %v", err)
	}
	defer store.Close()

	seed := docmodel.NewDocData(nil)
	seedStructuralTables(seed)
	if err := store.Save(seed); err != nil {
		log.Fatalf("seed structural store: %v", err)
	}

	live, err := store.Load()
	if err != nil {
		log.Fatalf("load structural store: %v", err)
	}
	live.SetTable(docmodel.NewTable("Orders"))

	auth := userattr.NewDocumentAuthorizer()
	if err := auth.Grant("owner1", "owner@example.com", "Owner", userattr.AccessOwner); err != nil {
		log.Fatalf("grant owner: %v", err)
	}
	if err := auth.Grant("viewer1", "viewer@example.com", "Viewer", userattr.AccessViewer); err != nil {
		log.Fatalf("grant viewer: %v", err)
	}

	resolver := userattr.NewUserResolver(auth, nil, nil, logger, cfg.Engine.RecoveryMode)
	sessionCache := userattr.NewSessionCache(context.Background(), userattr.NewMemoryCacheDriver())
	defer sessionCache.Close()
	broadcaster := broadcast.NewInMemoryBroadcaster()

	ctrl := bundle.NewController(live, nil, nil /* FormulaCompiler: every seeded rule here is unconditional */, auth, resolver, sessionCache, broadcaster, logger, cfg.Bundle.AuditLogSize)

	owner := userattr.Session{ID: "sess-owner", UserID: "owner1"}
	viewer := userattr.Session{ID: "sess-viewer", UserID: "viewer1"}
	ctrl.Subscribe(owner)
	ctrl.Subscribe(viewer)

	docActions := []*docmodel.DocAction{{
		Name:    docmodel.ActionBulkAddRecord,
		TableID: "Orders",
		RowIDs:  []int64{1, 2},
		Columns: map[string][]any{
			"public": {"a", "b"},
			"secret": {"x", "y"},
		},
	}}
	userActions := []docmodel.UserAction{{Name: docmodel.ActionBulkAddRecord, TableID: "Orders"}}

	ctx := context.Background()
	if err := ctrl.Begin(owner, userActions, docActions, nil); err != nil {
		log.Fatalf("begin: %v", err)
	}
	if err := ctrl.CanApplyBundle(ctx); err != nil {
		log.Fatalf("canApplyBundle: %v", err)
	}
	if err := ctrl.AppliedBundle(ctx); err != nil {
		log.Fatalf("appliedBundle: %v", err)
	}
	if err := ctrl.SendDocUpdateForBundle(ctx, &broadcast.ActionGroup{DocActions: docActions, Desc: "add two orders"}); err != nil {
		log.Fatalf("sendDocUpdateForBundle: %v", err)
	}
	if err := ctrl.FinishedBundle(ctx); err != nil {
		log.Fatalf("finishedBundle: %v", err)
	}

	fmt.Println("owner received:")
	printInbox(broadcaster.Inbox(owner.ID))
	fmt.Println("viewer received (secret column dropped):")
	printInbox(broadcaster.Inbox(viewer.ID))
}

func printInbox(msgs []broadcast.Message) {
	for _, msg := range msgs {
		if msg.Type == broadcast.MessageNeedReload {
			fmt.Printf("  NEED_RELOAD: %s\n", msg.Reason)
			continue
		}
		for _, a := range msg.DocActions {
			fmt.Printf("  %s %s rows=%v columns=%v\n", a.Name, a.TableID, a.RowIDs, a.Columns)
		}
	}
}

// seedStructuralTables installs one user table "Orders" with two
// columns and an ACL rule denying read on "secret" to everyone (the
// predicate is the empty-formula AlwaysTrue per
// aclrule.NewRuleCollection; owners bypass rule evaluation entirely
// at the PermissionInfo layer, so only non-owners are affected).
func seedStructuralTables(doc *docmodel.DocData) {
	tables := docmodel.NewTable(storedoc.TableTables)
	tables.RowIDs = []int64{1}
	tables.Columns["tableId"] = []any{"Orders"}
	doc.SetTable(tables)

	columns := docmodel.NewTable(storedoc.TableColumns)
	columns.RowIDs = []int64{10, 11}
	columns.Columns["parentId"] = []any{int64(1), int64(1)}
	columns.Columns["colId"] = []any{"public", "secret"}
	columns.Columns["label"] = []any{"Public", "Secret"}
	columns.Columns["widgetOptions"] = []any{"", ""}
	columns.Columns["formula"] = []any{"", ""}
	columns.Columns["type"] = []any{"Text", "Text"}
	doc.SetTable(columns)

	resources := docmodel.NewTable(storedoc.TableACLResources)
	resources.RowIDs = []int64{100}
	resources.Columns["tableId"] = []any{"Orders"}
	resources.Columns["colIds"] = []any{"secret"}
	doc.SetTable(resources)

	rules := docmodel.NewTable(storedoc.TableACLRules)
	rules.RowIDs = []int64{1000}
	rules.Columns["resource"] = []any{int64(100)}
	rules.Columns["aclFormula"] = []any{""}
	rules.Columns["permissions"] = []any{"-R"}
	rules.Columns["memo"] = []any{"secret column is owner-only"}
	rules.Columns["userAttributes"] = []any{""}
	doc.SetTable(rules)
}

func logLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogDebug
	case "warn":
		return logging.LogWarn
	case "error":
		return logging.LogError
	default:
		return logging.LogInfo
	}
}
