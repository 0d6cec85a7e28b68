// Package view implements the materialized-view contribution pipeline: for
// every document written against a table with one or more DEFINE TABLE ...
// AS SELECT views, it derives the Create/Update/Delete action, computes the
// GROUP BY aggregate row identity, and applies the view's rolling
// operators (count, math::sum, math::min, math::max, math::mean) to the
// aggregate row stored under the view table.
//
// Ported in spirit from original_source/core/src/doc/table.rs's
// Document::table/full/data/fields/set/chg/min/max/mean chain. That
// implementation builds SQL subquery ASTs (IfelseStatement, nested
// Subquery::Value expressions) and hands them to a general statement
// executor; this module has no query engine to hand them to, so the same
// decisions are made directly against the stored aggregate row instead of
// being compiled into expressions first.
//
// Contribute takes the caller's own kv.RwTx rather than opening one of
// its own: spec.md §4.6/§5 require view maintenance and the triggering
// base-record write to commit atomically in one transaction, so the
// retry-on-conflict loop belongs to whoever owns that transaction (see
// engine.Put/Delete), not to this package.
package view

import (
	"context"
	"strings"

	"github.com/erigontech/ligerdb/kv"
	"github.com/erigontech/ligerdb/session"
	"github.com/erigontech/ligerdb/value"
)

// Action mirrors table.rs's Action enum: which kind of write triggered
// this view contribution.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

// DeriveAction matches table(): a delete statement is always Delete;
// otherwise a nil previous value means the document didn't exist before
// (Create), anything else is Update.
func DeriveAction(previous value.Value, isDelete bool) Action {
	switch {
	case isDelete:
		return ActionDelete
	case previous == nil:
		return ActionCreate
	default:
		return ActionUpdate
	}
}

// RollingKind selects which rolling-operator semantics a field uses when
// folding a document's contribution into the aggregate row. Any field
// without a RollingKind is a plain projection: Set overwrites it outright.
type RollingKind int

const (
	RollingNone RollingKind = iota
	RollingCount
	RollingSum
	RollingMin
	RollingMax
	RollingMean
)

// FieldSpec is one projected field of a view's SELECT list.
type FieldSpec struct {
	Name    string
	Rolling RollingKind
	// Compute extracts this field's contribution value from the source
	// document (the "initial" doc for a Delete contribution, "current"
	// otherwise), matching fields()'s per-field compute call.
	Compute func(doc value.Value) value.Value
}

// Def is a materialized view's shape: which table it writes to, its
// optional GROUP BY field list (by idiom path, computed against the
// source document), an optional WHERE predicate, and its field list.
type Def struct {
	Table string
	Group []func(doc value.Value) value.Value
	Cond  func(doc value.Value) bool
	Fields []FieldSpec
}

// groupID evaluates every Group function against doc and joins the
// results into one aggregate record id, mirroring stk.scope(...
// try_join_all(group.iter()...)) producing a Thing whose id is the tuple
// of group values.
func groupID(group []func(doc value.Value) value.Value, doc value.Value) string {
	parts := make([]string, len(group))
	for i, g := range group {
		parts[i] = g(doc).String()
	}
	return strings.Join(parts, "\x1f")
}

// Materializer applies view contributions through the caller's
// transaction, so every aggregate-row update commits atomically with the
// base-record write that triggered it.
type Materializer struct{}

// Contribute processes one document write against every view Def that
// may be affected, matching Document::table: Force::All and a targeted
// Force::Table bypass the "did this document actually change" check;
// otherwise a no-op write (previous equal to current) contributes
// nothing. tx is the same read-write transaction the triggering
// base-record write is being made through; Contribute never opens or
// commits a transaction of its own (if tx later fails to commit, e.g. on
// an optimistic-concurrency conflict, the caller is responsible for
// retrying the whole base-write-plus-view-contribution unit).
func (m *Materializer) Contribute(ctx context.Context, tx kv.RwTx, opt session.Options, ns, db string, defs []Def, previous, current value.Value, isDelete, forced bool) error {
	if opt.Import {
		return nil
	}
	if !forced && !isDelete && previous != nil && current != nil && previous.Equal(current) {
		return nil
	}
	// Each contribution consumes one unit of the computation-depth budget.
	opt, err := opt.Dive(1)
	if err != nil {
		return err
	}
	// View contributions never run permission checks: the materializer
	// acts on the document's behalf, not the caller's.
	opt = opt.WithPerms(false)

	act := DeriveAction(previous, isDelete)
	for _, def := range defs {
		if err := m.contributeOne(ctx, tx, opt, ns, db, def, previous, current, act); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) contributeOne(ctx context.Context, tx kv.RwTx, opt session.Options, ns, db string, def Def, previous, current value.Value, act Action) error {
	if len(def.Group) == 0 {
		return m.contributeUngrouped(ctx, tx, opt, ns, db, def, previous, current, act)
	}
	return m.contributeGrouped(ctx, tx, opt, ns, db, def, previous, current, act)
}

// contributeGrouped mirrors the "Some(group)" branch of table(): it may
// touch two distinct aggregate rows (the document's old group and its new
// group), deleting its contribution from the old row and adding it to the
// new one, exactly as moving a document between GROUP BY buckets would.
func (m *Materializer) contributeGrouped(ctx context.Context, tx kv.RwTx, opt session.Options, ns, db string, def Def, previous, current value.Value, act Action) error {
	condOld := def.Cond == nil || (previous != nil && def.Cond(previous))
	condNew := def.Cond == nil || (current != nil && def.Cond(current))

	if act != ActionCreate && previous != nil && condOld {
		oldID := groupID(def.Group, previous)
		if err := m.applyRow(ctx, tx, ns, db, def, oldID, ActionDelete, previous); err != nil {
			return err
		}
	}
	if act != ActionDelete && current != nil && condNew {
		newID := groupID(def.Group, current)
		rowAct := ActionUpdate
		if act == ActionCreate {
			rowAct = ActionCreate
		}
		if err := m.applyRow(ctx, tx, ns, db, def, newID, rowAct, current); err != nil {
			return err
		}
	}
	return nil
}

// contributeUngrouped mirrors the "None" (no GROUP BY) branch: the
// aggregate row id is the source document's own id, reused verbatim
// under the view table, and cond is evaluated only against the current
// document.
func (m *Materializer) contributeUngrouped(ctx context.Context, tx kv.RwTx, opt session.Options, ns, db string, def Def, previous, current value.Value, act Action) error {
	doc := current
	if act == ActionDelete {
		doc = previous
	}
	if doc == nil {
		return nil
	}
	rowID := doc.String()
	if def.Cond != nil && !def.Cond(current) {
		act = ActionDelete
	}
	return m.applyRow(ctx, tx, ns, db, def, rowID, act, doc)
}

// applyRow folds one document's contribution into the aggregate row
// identified by rowID, reading and writing it through tx.
func (m *Materializer) applyRow(ctx context.Context, tx kv.RwTx, ns, db string, def Def, rowID string, act Action, doc value.Value) error {
	key := rowKey(ns, db, def.Table, rowID)

	raw, found, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	var row value.Object
	if found {
		decoded, derr := decodeRow(raw)
		if derr != nil {
			return derr
		}
		row = decoded
	} else {
		row = value.Object{}
	}

	purge := applyFields(row, def.Fields, act, doc)

	if purge {
		return tx.Del(ctx, key)
	}
	encoded, eerr := encodeRow(row)
	if eerr != nil {
		return eerr
	}
	return tx.Set(ctx, key, encoded)
}
