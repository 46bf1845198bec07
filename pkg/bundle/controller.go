// Package bundle implements C9, BundleController: the four-phase
// lifecycle that gates a set of incoming DocActions from acceptance
// through to a per-subscriber filtered broadcast (§4.11). It composes
// every other component — ingress checks, StepBuilder, the row/column
// filter, and CensorshipInfo — the way the teacher's
// mutex-guarded managers (`pkg/dataaccess/manager.go`,
// `pkg/security/authorization.go`) compose their own subsystems behind
// a small set of exported methods.
package bundle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/broadcast"
	"github.com/kasuganosora/gacengine/pkg/censorship"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/ingress"
	"github.com/kasuganosora/gacengine/pkg/logging"
	"github.com/kasuganosora/gacengine/pkg/permission"
	"github.com/kasuganosora/gacengine/pkg/stepbuilder"
	"github.com/kasuganosora/gacengine/pkg/userattr"
)

// Query is the minimal shape hasQueryAccess needs — currently just
// the one table it reads from, since this engine has no join-aware
// query planner of its own (§6: "hasQueryAccess ... delegates to
// hasTableAccess(query.tableId)").
type Query struct {
	TableID string
}

// activeBundle holds the state scoped to one open bundle, discarded
// on FinishedBundle.
type activeBundle struct {
	id                      string
	initiator               userattr.Session
	userActions             []docmodel.UserAction
	docActions              []*docmodel.DocAction
	undo                    []*docmodel.DocAction
	hasDeliberateRuleChange bool
	applied                 bool
	touchedUserAttrSource   bool
	touchedSchema           bool
	stepsBuilder            *stepbuilder.Builder
	prevUserAttributesMap   map[string]*userattr.UserAttributes
	audit                   *AuditEntry
}

// Controller is the BundleController: a mutex-guarded state machine
// over (live DocData, current Ruler, session cache, subscriber set).
// Exactly one bundle may be open at a time (invariant I1).
type Controller struct {
	mu sync.Mutex

	live     *docmodel.DocData
	fetch    docmodel.RowFetcher
	compiler aclrule.FormulaCompiler

	authorizer   *userattr.DocumentAuthorizer
	resolver     *userattr.UserResolver
	sessionCache *userattr.SessionCache
	broadcaster  broadcast.Broadcaster
	logger       logging.Logger

	ruler *permission.Ruler
	audit *AuditLog

	subscribers map[string]userattr.Session
	state       State
	active      *activeBundle
}

// NewController wires a Controller against the document's live data,
// its formula compiler, user resolution stack, broadcaster, and
// logger, and compiles the initial RuleCollection from live.
func NewController(
	live *docmodel.DocData,
	fetch docmodel.RowFetcher,
	compiler aclrule.FormulaCompiler,
	authorizer *userattr.DocumentAuthorizer,
	resolver *userattr.UserResolver,
	sessionCache *userattr.SessionCache,
	broadcaster broadcast.Broadcaster,
	logger logging.Logger,
	auditLogSize int,
) *Controller {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	rc := aclrule.NewRuleCollection(live, compiler)
	return &Controller{
		live:         live,
		fetch:        fetch,
		compiler:     compiler,
		authorizer:   authorizer,
		resolver:     resolver,
		sessionCache: sessionCache,
		broadcaster:  broadcaster,
		logger:       logger,
		ruler:        permission.NewRuler(rc),
		audit:        NewAuditLog(auditLogSize),
		subscribers:  map[string]userattr.Session{},
		state:        StateIdle,
	}
}

// Subscribe registers session as a live broadcast recipient.
func (c *Controller) Subscribe(session userattr.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[session.ID] = session
}

// Unsubscribe drops session and releases its cached PermissionInfo
// and user-attribute state (§5's explicit release hooks).
func (c *Controller) Unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, sessionID)
	c.ruler.ReleaseSession(sessionID)
	_ = c.sessionCache.Invalidate(context.Background(), sessionID)
}

// AuditLog exposes the bundle lifecycle audit trail (supplemented
// feature #1).
func (c *Controller) AuditLog() *AuditLog {
	return c.audit
}

// Update rebuilds the RuleCollection from the current live DocData
// and clears every cached PermissionInfo/user-attribute entry — the
// engine API's standalone update() (§6), used at boot and whenever a
// host applies ACL changes outside the normal bundle flow.
func (c *Controller) Update(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc := aclrule.NewRuleCollection(c.live, c.compiler)
	c.ruler.Update(rc)
	return c.sessionCache.InvalidateAll(ctx)
}

// Begin opens a new bundle (§4.11's first phase). Only one bundle may
// be open at a time; a second Begin before FinishedBundle fails with
// ErrBundleAlreadyOpen (invariant I1).
func (c *Controller) Begin(initiator userattr.Session, userActions []docmodel.UserAction, docActions, undo []*docmodel.DocAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrBundleAlreadyOpen
	}

	hasDeliberate := ingress.HasDeliberateRuleChange(userActions)
	active := &activeBundle{
		id:                      uuid.NewString(),
		initiator:               initiator,
		userActions:             userActions,
		docActions:              docActions,
		undo:                    undo,
		hasDeliberateRuleChange: hasDeliberate,
		stepsBuilder:            stepbuilder.New(c.live, c.fetch, c.compiler, c.logger),
	}
	active.audit = c.audit.Begin(initiator.UserID, hasDeliberate)

	c.active = active
	c.state = StateOpen
	return nil
}

// CanApplyBundle is the second phase (§4.11): it runs the
// owner-gating check on a deliberate rule change, the per-DocAction
// ingress AccessCheck against every rule currently in force, and, if
// any action targets an ACL table, a sandboxed CheckDocEntities pass
// before the change is allowed to land. A denial collapses the
// bundle straight back to idle.
func (c *Controller) CanApplyBundle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return wrongState("canApplyBundle")
	}
	active := c.active

	if active.hasDeliberateRuleChange && !c.authorizer.HasFullAccess(active.initiator.UserID) {
		err := ErrOwnerRequired{}
		c.denyLocked(err.Error())
		return err
	}

	if c.ruler.RuleCollection().HaveRules() {
		viewer, err := c.permissionInfoFor(ctx, active.initiator, c.ruler)
		if err != nil {
			c.denyLocked(err.Error())
			return err
		}
		for _, a := range active.docActions {
			if err := ingress.CheckDocAction(a, viewer); err != nil {
				c.denyLocked(err.Error())
				return err
			}
		}
	}

	if touchesACLTable(active.docActions) {
		sandbox := c.structuralSandbox()
		for _, a := range active.docActions {
			if err := sandbox.ReceiveAction(a); err != nil {
				apiErr := &ApiError{Status: 400, Message: err.Error()}
				c.denyLocked(apiErr.Error())
				return apiErr
			}
		}
		rc := aclrule.NewRuleCollection(sandbox, c.compiler)
		if err := rc.CheckDocEntities(sandbox); err != nil {
			apiErr := &ApiError{Status: 400, Message: err.Error()}
			c.denyLocked(apiErr.Error())
			return apiErr
		}
	}

	c.state = StateVerified
	c.audit.Transition(active.audit, StateVerified)
	return nil
}

// AppliedBundle is the third phase: the caller has committed
// docActions to the document's durable store, and tells the
// controller so it can mirror the commit into its own live DocData,
// detect whether the bundle touched a user-attribute source table or
// any schema/structural table, and invalidate caches accordingly
// (invariants I3/I4).
func (c *Controller) AppliedBundle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateVerified {
		return wrongState("appliedBundle")
	}
	active := c.active
	active.applied = true

	for _, a := range active.docActions {
		if err := c.live.ReceiveAction(a); err != nil {
			return fmt.Errorf("bundle: commit action to live doc data: %w", err)
		}
	}

	sourceTables := map[string]bool{}
	for _, r := range c.ruler.RuleCollection().GetUserAttributeRules() {
		sourceTables[r.TableID] = true
	}
	for _, a := range active.docActions {
		if sourceTables[a.TableID] {
			active.touchedUserAttrSource = true
		}
		if a.IsSchemaOp() || docmodel.IsStructuralTable(a.TableID) {
			active.touchedSchema = true
		}
	}

	if active.touchedUserAttrSource {
		active.prevUserAttributesMap = map[string]*userattr.UserAttributes{}
		for sessionID := range c.subscribers {
			if attrs, err := c.sessionCache.Get(ctx, sessionID); err == nil && attrs != nil {
				active.prevUserAttributesMap[sessionID] = attrs
			}
		}
		if err := c.sessionCache.InvalidateAll(ctx); err != nil {
			c.logger.Warn("invalidate session cache after bundle: %v", err)
		}
	}

	if active.touchedUserAttrSource || active.touchedSchema {
		c.ruler.ClearCache()
	}

	c.state = StateApplied
	c.audit.Transition(active.audit, StateApplied)
	return nil
}

// SendDocUpdateForBundle is the fourth phase: for a deliberate rule
// change every subscriber gets NEED_RELOAD instead of DocActions
// (§4.11); otherwise the bundle's ActionSteps are built once and each
// subscriber gets its own row/column-filtered, censorship-rewritten
// slice — or NEED_RELOAD if its resolved user attributes diverged
// mid-bundle (§9's _checkUserAttributes guard).
func (c *Controller) SendDocUpdateForBundle(ctx context.Context, ag *broadcast.ActionGroup) error {
	c.mu.Lock()
	if c.state != StateApplied {
		c.mu.Unlock()
		return wrongState("sendDocUpdateForBundle")
	}
	active := c.active
	subscribers := make([]userattr.Session, 0, len(c.subscribers))
	for _, s := range c.subscribers {
		subscribers = append(subscribers, s)
	}
	c.mu.Unlock()

	if active.hasDeliberateRuleChange {
		for _, sub := range subscribers {
			if err := c.broadcaster.Send(ctx, sub.ID, broadcast.Message{
				Type:   broadcast.MessageNeedReload,
				Reason: "ACL rules changed",
			}); err != nil {
				c.logger.Error("send need-reload to %s: %v", sub.ID, err)
			}
		}
		c.mu.Lock()
		c.audit.MarkNeedReload(active.audit)
		c.mu.Unlock()
		return nil
	}

	steps, err := active.stepsBuilder.GetSteps(ctx, stepbuilder.Bundle{
		DocActions: active.docActions,
		Undo:       active.undo,
		Applied:    active.applied,
	})
	if err != nil {
		return fmt.Errorf("bundle: build steps: %w", err)
	}

	for _, sub := range subscribers {
		if err := c.sendToSubscriber(ctx, sub, active, steps, ag); err != nil {
			c.logger.Error("send doc update to %s: %v", sub.ID, err)
		}
	}
	return nil
}

func (c *Controller) sendToSubscriber(ctx context.Context, sub userattr.Session, active *activeBundle, steps []stepbuilder.ActionStep, ag *broadcast.ActionGroup) error {
	if active.prevUserAttributesMap != nil {
		diverged, err := c.userAttributesDiverged(ctx, sub, active)
		if err != nil {
			return err
		}
		if diverged {
			return c.broadcaster.Send(ctx, sub.ID, broadcast.Message{
				Type:   broadcast.MessageNeedReload,
				Reason: "user attributes changed",
			})
		}
	}

	var outgoing []*docmodel.DocAction
	hasAccessRules := c.authorizer.HasFullAccess(sub.UserID)
	for _, step := range steps {
		viewer, err := c.permissionInfoFor(ctx, sub, step.Ruler)
		if err != nil {
			return err
		}
		filtered, err := c.filterStepAction(step, viewer, hasAccessRules)
		if err != nil {
			return err
		}
		outgoing = append(outgoing, filtered...)
	}

	outAG, err := c.filterActionGroupLocked(ctx, sub, ag)
	if err != nil {
		return err
	}
	if outAG != nil {
		outAG.DocActions = outgoing
	}

	return c.broadcaster.Send(ctx, sub.ID, broadcast.Message{
		Type:        broadcast.MessageDocUserAction,
		DocActions:  outgoing,
		ActionGroup: outAG,
	})
}

func (c *Controller) filterStepAction(step stepbuilder.ActionStep, viewer *permission.PermissionInfo, hasAccessRules bool) ([]*docmodel.DocAction, error) {
	metaTables := step.MetaAfter
	if metaTables == nil {
		metaTables = step.MetaBefore
	}
	var meta *docmodel.DocData
	if metaTables != nil {
		meta = docmodel.NewDocData(nil)
		for _, t := range metaTables {
			meta.SetTable(t)
		}
	}
	return dispatchAndCensor(step.Action, step.RowsBefore, step.RowsAfter, meta, viewer, hasAccessRules)
}

func (c *Controller) userAttributesDiverged(ctx context.Context, sub userattr.Session, active *activeBundle) (bool, error) {
	prev, had := active.prevUserAttributesMap[sub.ID]
	if !had || prev == nil {
		return false, nil
	}
	c.mu.Lock()
	ruler := c.ruler
	c.mu.Unlock()

	_, attrs, err := c.resolver.Resolve(ctx, sub, ruler.RuleCollection())
	if err != nil {
		return false, err
	}
	if attrs == nil {
		return true, nil
	}
	prevJSON, err := prev.StableJSON()
	if err != nil {
		return false, err
	}
	curJSON, err := attrs.StableJSON()
	if err != nil {
		return false, err
	}
	return prevJSON != curJSON, nil
}

// FinishedBundle is the final transition: whatever state the bundle
// is in, it collapses to idle. If the bundle was actually applied and
// touched an ACL table or any schema/structural table, the
// RuleCollection is rebuilt from the now-committed live DocData
// before the next bundle can open.
func (c *Controller) FinishedBundle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.active
	if active == nil {
		return nil
	}

	if active.applied && (touchesACLTable(active.docActions) || active.touchedSchema) {
		rc := aclrule.NewRuleCollection(c.live, c.compiler)
		c.ruler.Update(rc)
	}

	c.audit.Transition(active.audit, StateIdle)
	c.active = nil
	c.state = StateIdle
	return nil
}

func (c *Controller) denyLocked(reason string) {
	c.audit.Deny(c.active.audit, reason)
	c.active = nil
	c.state = StateIdle
}

func touchesACLTable(actions []*docmodel.DocAction) bool {
	for _, a := range actions {
		if a.TableID == "_grist_ACLRules" || a.TableID == "_grist_ACLResources" {
			return true
		}
	}
	return false
}

func (c *Controller) structuralSandbox() *docmodel.DocData {
	sandbox := docmodel.NewDocData(nil)
	for id := range docmodel.StructuralTableIDs() {
		if t := c.live.GetTable(id); t != nil {
			sandbox.SetTable(t.Clone())
		}
	}
	return sandbox
}

// permissionInfoFor resolves session's UserInfo under rules and
// returns the PermissionInfo the rest of the pipeline evaluates
// against, caching any freshly resolved UserAttributes. isOwner is
// read off the resolved (possibly impersonated) UserInfo rather than
// the real identity, so an owner impersonating a viewer is correctly
// treated as a viewer for this evaluation.
func (c *Controller) permissionInfoFor(ctx context.Context, session userattr.Session, ruler *permission.Ruler) (*permission.PermissionInfo, error) {
	if ruler == nil {
		ruler = c.ruler
	}
	info, attrs, err := c.resolver.Resolve(ctx, session, ruler.RuleCollection())
	if err != nil {
		return nil, err
	}
	if attrs != nil {
		if err := c.sessionCache.Set(ctx, session.ID, attrs); err != nil {
			c.logger.Warn("cache user attributes for %s: %v", session.ID, err)
		}
	}
	isOwner := info.Access == userattr.AccessOwner
	return ruler.GetPermissionInfo(session.ID, info.ToMap(), isOwner), nil
}

func (c *Controller) permissionInfoForCurrent(ctx context.Context, session userattr.Session) (*permission.PermissionInfo, error) {
	c.mu.Lock()
	ruler := c.ruler
	c.mu.Unlock()
	return c.permissionInfoFor(ctx, session, ruler)
}

// HasFullAccess reports whether session's real identity is the
// document owner (§6).
func (c *Controller) HasFullAccess(session userattr.Session) bool {
	return c.authorizer.HasFullAccess(session.UserID)
}

// HasNuancedAccess reports whether any rule exists and session is not
// the owner (§3's "nuanced access" gate for Special user actions).
func (c *Controller) HasNuancedAccess(session userattr.Session) bool {
	c.mu.Lock()
	rc := c.ruler.RuleCollection()
	c.mu.Unlock()
	return rc.HaveRules() && !c.HasFullAccess(session)
}

// HasTableAccess reports whether session can read tableID at all
// (Read != Deny).
func (c *Controller) HasTableAccess(ctx context.Context, session userattr.Session, tableID string) (bool, error) {
	viewer, err := c.permissionInfoForCurrent(ctx, session)
	if err != nil {
		return false, err
	}
	access, err := viewer.GetTableAccess(tableID)
	if err != nil {
		return false, err
	}
	return access.Read != aclrule.Deny, nil
}

// HasQueryAccess currently delegates to HasTableAccess(query.TableID)
// — this engine has no cross-table query planner of its own (§6).
func (c *Controller) HasQueryAccess(ctx context.Context, session userattr.Session, q Query) (bool, error) {
	return c.HasTableAccess(ctx, session, q.TableID)
}

// CanReadEverything reports whether session's full-document access
// (every table, no record dependence) reads Allow.
func (c *Controller) CanReadEverything(ctx context.Context, session userattr.Session) (bool, error) {
	viewer, err := c.permissionInfoForCurrent(ctx, session)
	if err != nil {
		return false, err
	}
	full, err := viewer.GetFullAccess()
	if err != nil {
		return false, err
	}
	return full.Read == aclrule.Allow, nil
}

// CanCopyEverything is synonymous with CanReadEverything in this
// engine — Grist distinguishes the two for snapshot/fork permissions
// this spec's Non-goals exclude, so both resolve to the same check.
func (c *Controller) CanCopyEverything(ctx context.Context, session userattr.Session) (bool, error) {
	return c.CanReadEverything(ctx, session)
}

// HasFullCopiesPermission aliases CanCopyEverything for the same
// reason.
func (c *Controller) HasFullCopiesPermission(ctx context.Context, session userattr.Session) (bool, error) {
	return c.CanCopyEverything(ctx, session)
}

// HasAccessRulesPermission reports whether session may view/edit ACL
// rules themselves. This engine treats that as owner-only rather than
// a separately assignable permission.
func (c *Controller) HasAccessRulesPermission(session userattr.Session) bool {
	return c.HasFullAccess(session)
}

// CanScanData composes hasFullAccess and canReadEverything per §9's
// open question resolution (no dedicated permission bit for
// autocomplete/find).
func (c *Controller) CanScanData(ctx context.Context, session userattr.Session) (bool, error) {
	readEverything, err := c.CanReadEverything(ctx, session)
	if err != nil {
		return false, err
	}
	return ingress.CanScanData(c.HasFullAccess(session), readEverything), nil
}

// AssertCanMaybeApplyUserActions exposes the ingress-level
// classification check outside the bundle flow, e.g. for a host's
// "can I even try this" pre-check before constructing DocActions.
func (c *Controller) AssertCanMaybeApplyUserActions(session userattr.Session, actions []docmodel.UserAction) (bool, error) {
	return ingress.AssertCanMaybeApplyUserActions(actions, c.HasNuancedAccess(session), c.HasFullAccess(session))
}

// GetUserOverride returns the impersonation target identity session
// is currently acting as, or nil if it is not impersonating anyone.
func (c *Controller) GetUserOverride(ctx context.Context, session userattr.Session) (*userattr.Identity, error) {
	c.mu.Lock()
	ruler := c.ruler
	c.mu.Unlock()
	_, attrs, err := c.resolver.Resolve(ctx, session, ruler.RuleCollection())
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, nil
	}
	return attrs.Override, nil
}

// FilterMetaTables runs every structural table snapshot through
// CensorshipInfo for session, blanking the fields §6's table
// prescribes on rows the viewer cannot see the owning resource of —
// used when a host serves the structural tables at doc-open time,
// outside any bundle.
func (c *Controller) FilterMetaTables(ctx context.Context, session userattr.Session, tables map[string]*docmodel.Table) (map[string]*docmodel.Table, error) {
	viewer, err := c.permissionInfoForCurrent(ctx, session)
	if err != nil {
		return nil, err
	}

	meta := docmodel.NewDocData(nil)
	for _, t := range tables {
		meta.SetTable(t.Clone())
	}
	info, err := censorship.Compute(meta, viewer)
	if err != nil {
		return nil, err
	}
	hasAccessRules := c.HasAccessRulesPermission(session)

	out := make(map[string]*docmodel.Table, len(tables))
	for id, t := range tables {
		rewritten := censorship.RewriteAction(tableToAction(t), info, hasAccessRules)
		out[id] = actionToTable(rewritten, id)
	}
	return out, nil
}

// FilterData applies the row/column filter (and, for a structural
// table, the censorship rewrite) to a full table snapshot — the
// engine API's filterData (§6), used outside the bundle broadcast
// flow (e.g. serving a fresh query result).
func (c *Controller) FilterData(ctx context.Context, session userattr.Session, t *docmodel.Table) (*docmodel.Table, error) {
	viewer, err := c.permissionInfoForCurrent(ctx, session)
	if err != nil {
		return nil, err
	}
	action := tableToAction(t)

	var meta *docmodel.DocData
	if docmodel.IsStructuralTable(t.TableID) {
		meta = docmodel.NewDocData(nil)
		meta.SetTable(t.Clone())
	}
	hasAccessRules := c.HasAccessRulesPermission(session)

	outs, err := dispatchAndCensor(action, t, t, meta, viewer, hasAccessRules)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return docmodel.NewTable(t.TableID), nil
	}
	return actionToTable(outs[0], t.TableID), nil
}

// FilterOutgoingDocActions applies the same egress pipeline
// SendDocUpdateForBundle uses internally to a standalone slice of
// DocActions not produced by an open bundle.
func (c *Controller) FilterOutgoingDocActions(ctx context.Context, session userattr.Session, actions []*docmodel.DocAction) ([]*docmodel.DocAction, error) {
	viewer, err := c.permissionInfoForCurrent(ctx, session)
	if err != nil {
		return nil, err
	}
	hasAccessRules := c.HasAccessRulesPermission(session)

	var out []*docmodel.DocAction
	for _, a := range actions {
		before := c.live.GetTable(a.TableID)
		scratch := docmodel.NewDocData(nil)
		if before != nil {
			scratch.SetTable(before.Clone())
		}
		if err := scratch.ReceiveAction(a); err != nil {
			return nil, err
		}
		after := scratch.GetTable(a.TableID)

		var meta *docmodel.DocData
		if docmodel.IsStructuralTable(a.TableID) {
			meta = c.structuralSandbox()
			if err := meta.ReceiveAction(a); err != nil {
				return nil, err
			}
		}

		filtered, err := dispatchAndCensor(a, before, after, meta, viewer, hasAccessRules)
		if err != nil {
			return nil, err
		}
		out = append(out, filtered...)
	}
	return out, nil
}

// FilterActionGroup suppresses ActionSummary/Desc for a viewer who
// cannot read everything (§6) before ag is broadcast.
func (c *Controller) FilterActionGroup(ctx context.Context, session userattr.Session, ag *broadcast.ActionGroup) (*broadcast.ActionGroup, error) {
	return c.filterActionGroupLocked(ctx, session, ag)
}

func (c *Controller) filterActionGroupLocked(ctx context.Context, session userattr.Session, ag *broadcast.ActionGroup) (*broadcast.ActionGroup, error) {
	if ag == nil {
		return nil, nil
	}
	full, err := c.CanReadEverything(ctx, session)
	if err != nil {
		return nil, err
	}
	out := ag.Clone()
	if !full {
		out.ActionSummary = nil
		out.Desc = ""
	}
	return out, nil
}

