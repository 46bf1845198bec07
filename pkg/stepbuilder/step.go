// Package stepbuilder implements C7, StepBuilder: turning one
// committed bundle's (docActions, undo, applied) triple into the
// before/after table snapshots the row/column filter needs (§4.5).
package stepbuilder

import (
	"context"
	"fmt"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/logging"
	"github.com/kasuganosora/gacengine/pkg/permission"
)

// ActionStep pairs one DocAction with the table states around it
// (§4.5). MetaBefore/MetaAfter are only populated when the action
// touches schema or a structural table. Ruler is the rule state in
// force for this step — the same pointer as the previous step's
// unless an adjacent run of ACL-table actions just ended (§4.5 step 6,
// invariant I2).
type ActionStep struct {
	Action     *docmodel.DocAction
	RowsBefore *docmodel.Table
	RowsAfter  *docmodel.Table
	MetaBefore map[string]*docmodel.Table
	MetaAfter  map[string]*docmodel.Table
	Ruler      *permission.Ruler
}

// Bundle is the input StepBuilder consumes: one committed set of
// DocActions plus the undo that would reverse them, and whether they
// have already been applied to the live DocData (§4.5).
type Bundle struct {
	DocActions []*docmodel.DocAction
	Undo       []*docmodel.DocAction
	Applied    bool
}

// FormulaCompiler is re-exported so callers assembling a Builder don't
// need to import aclrule directly just for this type.
type FormulaCompiler = aclrule.FormulaCompiler

// Builder computes and memoizes the ActionStep sequence for one
// bundle (§4.5's "StepBuilder is memoized per bundle").
type Builder struct {
	live     *docmodel.DocData
	fetch    docmodel.RowFetcher
	compiler FormulaCompiler
	logger   logging.Logger

	steps []ActionStep
	built bool
	err   error
}

// New wires a Builder against the live DocData, the engine's
// fetchQueryFromDB row fetcher, and the formula compiler Ruler
// rebuilds need.
func New(live *docmodel.DocData, fetch docmodel.RowFetcher, compiler FormulaCompiler, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Builder{live: live, fetch: fetch, compiler: compiler, logger: logger}
}

// GetSteps returns the bundle's ActionStep sequence, computing it on
// first call and reusing thereafter (§4.5's `_getSteps()` memoization).
// A failed first attempt is re-thrown on every subsequent call rather
// than retried, matching "Failures are logged and re-thrown".
func (b *Builder) GetSteps(ctx context.Context, bundle Bundle) ([]ActionStep, error) {
	if b.built {
		return b.steps, b.err
	}
	b.built = true
	b.steps, b.err = b.computeSteps(ctx, bundle)
	if b.err != nil {
		b.logger.Error("step construction failed: %v", b.err)
	}
	return b.steps, b.err
}

func (b *Builder) computeSteps(ctx context.Context, bundle Bundle) ([]ActionStep, error) {
	related := relatedRows(bundle)

	dataScratch := docmodel.NewDocData(b.fetch)
	for tableID, rowIDs := range related {
		ids := make([]int64, 0, len(rowIDs))
		for id := range rowIDs {
			ids = append(ids, id)
		}
		if t := b.live.GetTable(tableID); t != nil {
			dataScratch.SetTable(t.Clone())
		}
		if err := dataScratch.SyncTable(ctx, tableID, ids); err != nil {
			return nil, fmt.Errorf("sync related rows for %s: %w", tableID, err)
		}
	}

	touchesSchema := false
	for _, a := range bundle.DocActions {
		if a.IsSchemaOp() || docmodel.IsStructuralTable(a.TableID) {
			touchesSchema = true
			break
		}
	}

	var metaScratch *docmodel.DocData
	if touchesSchema {
		metaScratch = docmodel.NewDocData(nil)
		for tableID := range docmodel.StructuralTableIDs() {
			if t := b.live.GetTable(tableID); t != nil {
				metaScratch.SetTable(t.Clone())
			}
		}
	}

	if bundle.Applied {
		for i := len(bundle.Undo) - 1; i >= 0; i-- {
			if err := dataScratch.ReceiveAction(bundle.Undo[i]); err != nil {
				return nil, fmt.Errorf("rewind data scratch: %w", err)
			}
			if metaScratch != nil {
				if err := metaScratch.ReceiveAction(bundle.Undo[i]); err != nil {
					return nil, fmt.Errorf("rewind meta scratch: %w", err)
				}
			}
		}
	}

	currentRuler := permission.NewRuler(aclrule.NewRuleCollection(metaIfAny(metaScratch, b.live), b.compiler))
	replaceRuler := false

	steps := make([]ActionStep, 0, len(bundle.DocActions))
	for _, a := range bundle.DocActions {
		step := ActionStep{Action: a}

		step.RowsBefore = dataScratch.GetTable(a.TableID).Clone()
		if err := dataScratch.ReceiveAction(a); err != nil {
			return nil, fmt.Errorf("apply action to data scratch: %w", err)
		}
		if after := dataScratch.GetTable(a.TableID); after != nil {
			step.RowsAfter = after.Clone()
		} else {
			step.RowsAfter = step.RowsBefore
		}

		isACLAction := a.TableID == "_grist_ACLRules" || a.TableID == "_grist_ACLResources"
		if metaScratch != nil && (a.IsSchemaOp() || docmodel.IsStructuralTable(a.TableID)) {
			step.MetaBefore = snapshotMeta(metaScratch)
			if err := metaScratch.ReceiveAction(a); err != nil {
				return nil, fmt.Errorf("apply action to meta scratch: %w", err)
			}
			step.MetaAfter = snapshotMeta(metaScratch)
		}

		// An adjacent run of ACL-table actions only flips the Ruler once
		// a non-ACL action follows it — grouping rule+resource edits so
		// no step ever evaluates a half-applied rule change (§4.5 step 6).
		if isACLAction {
			replaceRuler = true
		} else if replaceRuler {
			rc := aclrule.NewRuleCollection(metaIfAny(metaScratch, b.live), b.compiler)
			currentRuler = permission.NewRuler(rc)
			replaceRuler = false
		}
		step.Ruler = currentRuler

		steps = append(steps, step)
	}

	return steps, nil
}

func metaIfAny(metaScratch *docmodel.DocData, live *docmodel.DocData) *docmodel.DocData {
	if metaScratch != nil {
		return metaScratch
	}
	return live
}

// relatedRows maps tableId to the set of row ids touched by any
// action in the bundle, from both the forward actions and their undo
// (§4.5 step 1).
func relatedRows(bundle Bundle) map[string]map[int64]bool {
	out := map[string]map[int64]bool{}
	add := func(a *docmodel.DocAction) {
		if !a.IsRowAction() {
			return
		}
		set, ok := out[a.TableID]
		if !ok {
			set = map[int64]bool{}
			out[a.TableID] = set
		}
		for _, id := range a.RowIDs {
			set[id] = true
		}
	}
	for _, a := range bundle.DocActions {
		add(a)
	}
	for _, a := range bundle.Undo {
		add(a)
	}
	return out
}

// snapshotMeta deep-copies every table of d into a fresh map. No table
// is shared between snapshots: each call clones all tables, whether or
// not the step's action touched them.
func snapshotMeta(d *docmodel.DocData) map[string]*docmodel.Table {
	out := map[string]*docmodel.Table{}
	for _, id := range d.TableIDs() {
		out[id] = d.GetTable(id).Clone()
	}
	return out
}
