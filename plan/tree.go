package plan

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/ligerdb/session"
	"github.com/erigontech/ligerdb/value"
)

// NodeKind discriminates a resolved expression tree node.
type NodeKind int

const (
	NodeExpression NodeKind = iota
	NodeIndexedField
	NodeNonIndexedField
	NodeComputed
	NodeUnsupported
)

// Node is one resolved position in the filter tree. Children are
// referenced by arena index (ref into Tree.nodes) rather than pointer, so
// the same sub-expression discovered twice (structurally identical,
// revisited through a different parent) memoizes to one arena slot
// instead of needing Arc-style pointer-identity hashing — see
// SPEC_FULL.md §4.7 / DESIGN.md's arena-vs-pointer-identity resolution.
type Node struct {
	Kind NodeKind

	// NodeExpression
	Op          Op
	Left, Right int // arena refs, -1 if unused

	// NodeIndexedField / NodeNonIndexedField
	Field string

	// NodeComputed holds an expression the builder cannot decompose
	// further (e.g. a bare literal or function-call subquery).
	Computed Expr

	// NodeUnsupported records why a node could not be resolved, for
	// EXPLAIN diagnostics.
	Reason string
}

func (n Node) IsComputed() bool       { return n.Kind == NodeComputed }
func (n Node) IsIndexedField() bool   { return n.Kind == NodeIndexedField }
func (n Node) IsNonIndexedField() bool { return n.Kind == NodeNonIndexedField }

// Tree is the arena-backed result of resolving a filter expression against
// a table's index definitions.
type Tree struct {
	nodes []Node

	// resolvedExpressions memoizes by a canonical structural key rather
	// than by Expr/pointer identity: Expr implementations may embed
	// slices (Idiom.Path) and so are not always comparable as Go map
	// keys, and Go has no Arc-style pointer-identity hash the original
	// relies on. Keying on a synthesized string is the arena-index
	// equivalent for user-supplied expression trees (see DESIGN.md).
	resolvedExpressions map[string]int
	resolvedIdioms       map[string]int

	IndexMap        IndexMap
	KnnExpressions  []int // arena refs to the NodeIndexedField nodes of KNN predicates bound to an index
	AnnExpressions  []int
	Root            int
}

type TreeBuilder struct {
	indexes    []IndexDef
	indexCache *lru.Cache[string, []IndexDef]
}

// NewTreeBuilder constructs a builder caching a table's index definitions
// across every Tree build it makes, mirroring lazy_cache_indexes in
// original_source/core/src/idx/planner/tree.rs.
func NewTreeBuilder(indexes []IndexDef) (*TreeBuilder, error) {
	c, err := lru.New[string, []IndexDef](64)
	if err != nil {
		return nil, err
	}
	return &TreeBuilder{indexes: indexes, indexCache: c}, nil
}

func (tb *TreeBuilder) indexesFor(table string) []IndexDef {
	if v, ok := tb.indexCache.Get(table); ok {
		return v
	}
	tb.indexCache.Add(table, tb.indexes)
	return tb.indexes
}

// Build resolves expr into a Tree, consuming one unit of opt's
// computation-depth budget per level of recursion (mirroring
// eval_expression/eval_value's implicit recursion budget in the
// original, made explicit here via session.Options.Dive).
func Build(opt session.Options, table string, expr Expr) (*Tree, error) {
	tb, err := NewTreeBuilder(nil)
	if err != nil {
		return nil, err
	}
	return tb.Build(opt, table, expr)
}

func (tb *TreeBuilder) Build(opt session.Options, table string, expr Expr) (*Tree, error) {
	t := &Tree{
		resolvedExpressions: make(map[string]int),
		resolvedIdioms:       make(map[string]int),
		IndexMap:             make(IndexMap),
	}
	indexes := tb.indexesFor(table)
	root, err := t.eval(opt, indexes, expr, positionNone)
	if err != nil {
		return nil, err
	}
	t.Root = root
	return t, nil
}

// idiomPosition mirrors IdiomPosition: which side of a binary comparison
// the field idiom appeared on, so eval can flip the operator for fields
// on the right (5 > age -> age < 5).
type idiomPosition int

const (
	positionNone idiomPosition = iota
	positionLeft
	positionRight
)

func (t *Tree) alloc(n Node) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

func (t *Tree) Node(ref int) Node { return t.nodes[ref] }

// AllConjunctsIndexed reports whether every leaf comparison in the
// top-level AND-chain rooted at Root resolved to an IndexOption. Used by
// the record-strategy decision table's "cond present AND not all
// expressions indexed" rule (spec.md §4.8).
func (t *Tree) AllConjunctsIndexed() bool {
	if len(t.nodes) == 0 {
		return false
	}
	return t.allConjunctsIndexed(t.Root)
}

func (t *Tree) allConjunctsIndexed(ref int) bool {
	n := t.Node(ref)
	if n.Kind != NodeExpression {
		return false
	}
	if n.Op == OpAnd {
		return t.allConjunctsIndexed(n.Left) && t.allConjunctsIndexed(n.Right)
	}
	left := t.Node(n.Left)
	return left.IsIndexedField() && len(t.IndexMap[left.Field]) > 0
}

func (t *Tree) eval(opt session.Options, indexes []IndexDef, expr Expr, pos idiomPosition) (int, error) {
	opt, err := opt.Dive(1)
	if err != nil {
		return 0, err
	}

	switch e := expr.(type) {
	case Binary:
		return t.evalBinary(opt, indexes, e)
	case Idiom:
		return t.evalIdiom(indexes, e)
	case Lit:
		return t.alloc(Node{Kind: NodeComputed, Computed: e}), nil
	case MatchesExpr:
		return t.evalMatches(indexes, e)
	case KnnExpr:
		return t.evalKnn(indexes, e)
	case Subquery:
		return t.alloc(Node{Kind: NodeComputed, Computed: e}), nil
	default:
		return t.alloc(Node{Kind: NodeUnsupported, Reason: "unknown expression shape"}), nil
	}
}

func (t *Tree) evalBinary(opt session.Options, indexes []IndexDef, e Binary) (int, error) {
	memoKey, memoable := exprKey(e)
	if memoable {
		if memo, ok := t.resolvedExpressions[memoKey]; ok {
			return memo, nil
		}
	}

	leftPos, rightPos := positionNone, positionNone
	if isFieldOperand(e.Op) {
		leftPos, rightPos = positionLeft, positionRight
	}

	left, err := t.eval(opt, indexes, e.Left, leftPos)
	if err != nil {
		return 0, err
	}
	right, err := t.eval(opt, indexes, e.Right, rightPos)
	if err != nil {
		return 0, err
	}

	op := e.Op
	// If the indexed field landed on the right (e.g. `5 > age`), flip the
	// comparator so index resolution always reasons as if the field were
	// on the left, matching IdiomPosition.transform().
	if t.Node(left).IsComputed() && t.Node(right).IsIndexedField() {
		left, right = right, left
		op = op.flip()
	}

	ref := t.alloc(Node{Kind: NodeExpression, Op: op, Left: left, Right: right})
	if memoable {
		t.resolvedExpressions[memoKey] = ref
	}
	t.resolveIndexOption(indexes, ref, op, left, right)
	return ref, nil
}

// exprKey returns a canonical string key for structurally memoizable
// expressions (those built entirely from Binary/Idiom/Lit with
// comparable Lit values), and ok=false for shapes not worth canonicalizing
// (Subquery/MatchesExpr/KnnExpr carry arbitrary value.Value payloads that
// are cheap to re-evaluate and not meaningfully deduplicable as strings).
func exprKey(e Expr) (string, bool) {
	switch v := e.(type) {
	case Binary:
		lk, ok := exprKey(v.Left)
		if !ok {
			return "", false
		}
		rk, ok := exprKey(v.Right)
		if !ok {
			return "", false
		}
		return "(" + lk + opSymbol(v.Op) + rk + ")", true
	case Idiom:
		return "$" + strings.Join(v.Path, "."), true
	case Lit:
		if v.Value == nil {
			return "", false
		}
		return "#" + v.Value.String(), true
	default:
		return "", false
	}
}

func opSymbol(op Op) string {
	names := []string{"&&", "||", "==", "!=", "<", "<=", ">", ">=", "~", "in", "@@", "<|>"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

func isFieldOperand(op Op) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpContains, OpInside:
		return true
	default:
		return false
	}
}

func (t *Tree) evalIdiom(indexes []IndexDef, e Idiom) (int, error) {
	key := strings.Join(e.Path, ".")
	if memo, ok := t.resolvedIdioms[key]; ok {
		return memo, nil
	}
	var ref int
	if _, ok := lookupIndex(indexes, key); ok {
		ref = t.alloc(Node{Kind: NodeIndexedField, Field: key})
	} else {
		ref = t.alloc(Node{Kind: NodeNonIndexedField, Field: key})
	}
	t.resolvedIdioms[key] = ref
	return ref, nil
}

func (t *Tree) resolveIndexOption(indexes []IndexDef, exprRef int, op Op, left, right int) {
	ln := t.Node(left)
	if !ln.IsIndexedField() {
		return
	}
	rn := t.Node(right)
	if !rn.IsComputed() {
		return
	}
	lit, ok := rn.Computed.(Lit)
	if !ok {
		return
	}

	ix, ok := lookupIndex(indexes, ln.Field)
	if !ok {
		return
	}

	var operator IndexOperator
	switch op {
	case OpEqual:
		operator = IndexOperator{Kind: OperatorEquality, Value: lit.Value}
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		operator = IndexOperator{Kind: OperatorRangePart, Range: rangeFromComparison(op, lit.Value)}
	default:
		return
	}

	t.IndexMap[ln.Field] = append(t.IndexMap[ln.Field], IndexOption{Index: ix, Operator: operator})
}

// rangeFromComparison turns a single-sided comparison (age > 5, age <=
// 10, ...) into the half-open/half-closed value.ValueRange the plan
// selector's SingleIndexRange scan consumes. Begin/End are left nil on
// the unconstrained side.
func rangeFromComparison(op Op, v value.Value) value.ValueRange {
	switch op {
	case OpGreater:
		return value.ValueRange{Begin: v, BeginExcl: true}
	case OpGreaterEqual:
		return value.ValueRange{Begin: v}
	case OpLess:
		return value.ValueRange{End: v, EndExcl: true}
	default: // OpLessEqual
		return value.ValueRange{End: v}
	}
}

func (t *Tree) evalMatches(indexes []IndexDef, e MatchesExpr) (int, error) {
	key := strings.Join(e.Field.Path, ".")
	ref := t.alloc(Node{Kind: NodeIndexedField, Field: key})
	if ix, ok := lookupIndex(indexes, key); ok {
		t.IndexMap[key] = append(t.IndexMap[key], IndexOption{
			Index:    ix,
			Operator: IndexOperator{Kind: OperatorMatches, Search: e.Search},
		})
	}
	return ref, nil
}

func (t *Tree) evalKnn(indexes []IndexDef, e KnnExpr) (int, error) {
	key := strings.Join(e.Field.Path, ".")
	ref := t.alloc(Node{Kind: NodeIndexedField, Field: key})

	ix, hasIndex := lookupIndex(indexes, key)
	servesMetric := false
	for _, m := range ix.KnnMetrics {
		if strings.EqualFold(m, e.Distance) {
			servesMetric = true
		}
	}
	canIndex := hasIndex && servesMetric && mtreeCapableMetrics[strings.ToLower(e.Distance)] && e.EF > 0

	op := IndexOperator{
		Kind: OperatorAnn,
		Knn:  KnnParams{Target: e.Target, K: e.K, EF: e.EF, Distance: e.Distance},
	}
	if canIndex {
		op.Kind = OperatorKnn
		t.IndexMap[key] = append(t.IndexMap[key], IndexOption{Index: ix, Operator: op})
		t.KnnExpressions = append(t.KnnExpressions, ref)
	} else {
		t.AnnExpressions = append(t.AnnExpressions, ref)
	}
	return ref, nil
}
