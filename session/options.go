// Package session implements the immutable per-call Options value and its
// two-phase permission gate, ported field-for-field from
// original_source/crates/core/src/dbs/options.rs.
package session

import (
	"github.com/erigontech/ligerdb/errs"
)

// Force controls whether a write statement bypasses schema/permission
// checks it would otherwise be subject to.
type Force int

const (
	ForceNone Force = iota
	ForceAll
	ForceTable
)

// Action identifies the kind of operation a permission check is being
// made for.
type Action int

const (
	ActionView Action = iota
	ActionEdit
)

// Base scopes a resource for the is_allowed check: root, a namespace, or
// a namespace+database pair.
type Base int

const (
	BaseRoot Base = iota
	BaseNs
	BaseDb
)

// Auth is the minimal authentication context this module's permission
// gate needs. Full auth/IAM plumbing is out of scope (see
// SPEC_FULL.md Non-goals); this is the narrow surface check_perms and
// is_allowed actually consult.
type Auth interface {
	IsAnonymous() bool
	HasEditorRole() bool
	// IsAllowed performs the expensive per-row check delegated to by
	// Options.IsAllowed, once the cheap prefilter in CheckPerms passes.
	IsAllowed(action Action, base Base, ns, db string) bool
}

// DefaultMaxComputationDepth bounds recursive evaluation (expression
// trees, view propagation) absent an explicit override.
const DefaultMaxComputationDepth = 64

// Notification is the element type of Options.Notify for live queries.
type Notification struct {
	LiveID string
	Action string
	Record any
}

// Options is the immutable per-call context threaded through every
// operation in this module. A new Options is never mutated in place;
// derivation methods (Dive, WithNS, ...) return a modified copy, mirroring
// the original's Options::new/with_*/dive methods.
type Options struct {
	NS   string
	DB   string
	Dive uint32
	Auth Auth
	Force  Force
	Perms  bool // when false, every permission check is bypassed
	Strict bool
	Import bool
	Live   bool
	Version    *uint64 // nanoseconds since epoch; nil means "current"
	Notify     chan<- Notification
	ID string // the statement/transaction id, for diagnostics
}

// New returns an Options with defaults matching Options::new(): full
// computation-depth budget, permissions enforced, nothing else set.
func New() Options {
	return Options{
		Dive:  DefaultMaxComputationDepth,
		Perms: true,
	}
}

// WithMaxComputationDepth returns a copy with Dive set to depth.
func (o Options) WithMaxComputationDepth(depth uint32) Options {
	o.Dive = depth
	return o
}

// WithID returns a copy with ID set.
func (o Options) WithID(id string) Options {
	o.ID = id
	return o
}

// WithNS returns a copy scoped to ns.
func (o Options) WithNS(ns string) Options {
	o.NS = ns
	return o
}

// WithDB returns a copy scoped to db.
func (o Options) WithDB(db string) Options {
	o.DB = db
	return o
}

// WithPerms returns a copy with permission enforcement toggled. The view
// materializer calls this with false for the synthetic statements it
// issues on a document's behalf (spec.md §4.6, §9): a view write must
// never be blocked by a permission rule that would have blocked the
// user's own direct write to the view table.
func (o Options) WithPerms(enabled bool) Options {
	o.Perms = enabled
	return o
}

// NsDb requires both NS and DB to be set, returning errs.NsEmpty or
// errs.DbEmpty otherwise. Most record-level operations call this first.
func (o Options) NsDb() (string, string, error) {
	ns, err := o.RequireNS()
	if err != nil {
		return "", "", err
	}
	db, err := o.RequireDB()
	if err != nil {
		return "", "", err
	}
	return ns, db, nil
}

func (o Options) RequireNS() (string, error) {
	if o.NS == "" {
		return "", errs.NsEmpty()
	}
	return o.NS, nil
}

func (o Options) RequireDB() (string, error) {
	if o.DB == "" {
		return "", errs.DbEmpty()
	}
	return o.DB, nil
}

// Realtime reports whether this session may receive live-query
// notifications.
func (o Options) Realtime() bool { return o.Live && o.Notify != nil }

// SelectedBase returns the most specific Base this Options is currently
// scoped to: Db if both NS and DB are set, Ns if only NS is set, else
// Root.
func (o Options) SelectedBase() Base {
	switch {
	case o.NS != "" && o.DB != "":
		return BaseDb
	case o.NS != "":
		return BaseNs
	default:
		return BaseRoot
	}
}

// Dive decrements the computation-depth budget by cost, returning a new
// Options on success or errs.ComputationDepthExceeded if cost exceeds the
// remaining budget. This is the sole recursion guard for the filter-tree
// evaluator and the view materializer's view-to-view propagation.
func (o Options) Dive(cost uint32) (Options, error) {
	if o.Dive < cost {
		return Options{}, errs.ComputationDepthExceeded()
	}
	n := o
	n.Dive = o.Dive - cost
	return n, nil
}

// CheckPerms performs the cheap prefilter: bypass immediately if
// permissions are disabled on this session, or if it has no Auth or an
// anonymous one. Options has no auth-enforcement flag, so every anonymous
// session bypasses the check. Action Edit additionally
// bypasses for an auth principal holding the editor role. Returns nil if
// the action is allowed without consulting IsAllowed; non-nil does NOT
// mean denied — callers must still call IsAllowed per row.
func (o Options) CheckPerms(action Action) error {
	if !o.Perms {
		return nil
	}
	if o.Auth == nil || o.Auth.IsAnonymous() {
		return nil
	}
	if action == ActionEdit && o.Auth.HasEditorRole() {
		return nil
	}
	return errRequiresRowCheck
}

var errRequiresRowCheck = errs.New(errs.KindUnreachable, "session: permission check requires per-row evaluation")

// RequiresRowCheck reports whether CheckPerms's cheap prefilter was
// inconclusive and IsAllowed must be consulted for this specific row.
func RequiresRowCheck(err error) bool { return err == errRequiresRowCheck }

// IsAllowed performs the expensive per-row check, scoping the resource by
// base (root/ns/db) and delegating to the Auth implementation. Anonymous
// sessions with permissions disabled are allowed; everything else defers
// to Auth.IsAllowed.
func (o Options) IsAllowed(action Action, base Base) bool {
	if !o.Perms {
		return true
	}
	if o.Auth == nil {
		return true
	}
	if o.Auth.IsAnonymous() && !o.Perms {
		return true
	}
	return o.Auth.IsAllowed(action, base, o.NS, o.DB)
}
