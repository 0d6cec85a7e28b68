package plan

import "github.com/erigontech/ligerdb/vector"

// RecordStrategy decides how much of a matched row the executor needs to
// materialize, avoiding a value fetch when only existence or a count is
// required.
type RecordStrategy int

const (
	KeysOnly RecordStrategy = iota
	KeysAndValues
	Count
)

// ScanDirection selects the order a table/index iterator walks in.
type ScanDirection int

const (
	Forward ScanDirection = iota
	Backward
)

// PlanKind discriminates the overall scan shape chosen for a query.
type PlanKind int

const (
	PlanTableIterator PlanKind = iota
	PlanMultiIndex
	PlanSingleIndexRange
	PlanSingleIndex
)

// StatementKind is the statement the record-strategy decision table's
// first rule keys off: Update/Upsert/Delete always read values, Select
// may not need to.
type StatementKind int

const (
	StatementSelect StatementKind = iota
	StatementUpdate
	StatementUpsert
	StatementDelete
)

// PermissionLevel is the granted table permission level the decision
// table's "table permission is Specific" rule checks.
type PermissionLevel int

const (
	PermissionFull PermissionLevel = iota
	PermissionSpecific
)

// QueryShape is the statement-level description the record-strategy and
// scan-direction decision tables (spec.md §4.8) consume.
type QueryShape struct {
	Statement StatementKind

	// CondPresent is whether a WHERE/cond clause was given at all.
	// AllCondExprsIndexed is filled in by SelectPlan from the resolved
	// Tree and should not normally be set by callers directly (it is
	// exposed on QueryShape so ChooseRecordStrategy stays independently
	// testable without a Tree).
	CondPresent         bool
	AllCondExprsIndexed bool

	GroupPresent bool
	GroupAll     bool

	OrderPresent        bool
	OrderSpecificFields bool

	// HasNonCountProjection is true when the projection includes any
	// field besides count(). CountOnly is true when the sole
	// projection is count().
	HasNonCountProjection bool
	CountOnly             bool

	Permission PermissionLevel

	OrderByIDDesc bool
}

// ChooseRecordStrategy picks KeysOnly/KeysAndValues/Count following
// spec.md §4.8's decision table, evaluated in order: Update/Upsert/Delete
// always read values; an unindexed cond, a non-GROUP-ALL group, a
// specific-fields order, any non-count projection field, or a Specific
// table permission all force a value fetch; a bare count() under GROUP
// ALL needs neither keys nor values, just a count; anything left reads
// keys only.
func ChooseRecordStrategy(shape QueryShape) RecordStrategy {
	switch {
	case shape.Statement == StatementUpdate || shape.Statement == StatementUpsert || shape.Statement == StatementDelete:
		return KeysAndValues
	case shape.CondPresent && !shape.AllCondExprsIndexed:
		return KeysAndValues
	case shape.GroupPresent && !shape.GroupAll:
		return KeysAndValues
	case shape.OrderPresent && shape.OrderSpecificFields:
		return KeysAndValues
	case shape.HasNonCountProjection:
		return KeysAndValues
	case shape.Permission == PermissionSpecific:
		return KeysAndValues
	case shape.CountOnly && shape.GroupAll:
		return Count
	default:
		return KeysOnly
	}
}

// ChooseScanDirection picks Forward unless the statement orders by id
// descending, in which case the iterator walks the key range backward so
// no separate sort step is needed.
func ChooseScanDirection(shape QueryShape) ScanDirection {
	if shape.OrderByIDDesc {
		return Backward
	}
	return Forward
}

// Plan is the selected execution shape for one table scan.
type Plan struct {
	Kind       PlanKind
	Table      string
	Direction  ScanDirection
	Strategy   RecordStrategy
	Indexes    []IndexOption // for MultiIndex/SingleIndex/SingleIndexRange
	Fallback   []FallbackStage
}

// FallbackStage describes a brute-force post-processing step, used for
// KNN/ANN predicates an index cannot serve directly.
type FallbackStage struct {
	Kind   FallbackKind
	Field  string
	Params KnnParams
}

type FallbackKind int

const (
	FallbackCollectKnn FallbackKind = iota
	FallbackBuildKnn
)

// SelectPlan chooses an overall plan shape from a resolved Tree's index
// map: no usable IndexOption at all falls back to a full TableIterator;
// exactly one field with IndexOptions uses SingleIndex (or
// SingleIndexRange if the sole option is a RangePart); more than one
// indexed field combines them via MultiIndex. KNN/ANN expressions the
// tree could not bind to an index become Fallback stages appended to
// whichever plan shape was chosen.
func SelectPlan(table string, t *Tree, shape QueryShape) Plan {
	if shape.CondPresent {
		shape.AllCondExprsIndexed = t.AllConjunctsIndexed()
	}
	p := Plan{
		Table:     table,
		Direction: ChooseScanDirection(shape),
		Strategy:  ChooseRecordStrategy(shape),
	}

	fields := make([]string, 0, len(t.IndexMap))
	for f := range t.IndexMap {
		fields = append(fields, f)
	}

	switch len(fields) {
	case 0:
		p.Kind = PlanTableIterator
	case 1:
		opts := t.IndexMap[fields[0]]
		p.Indexes = opts
		if len(opts) == 1 && opts[0].Operator.Kind == OperatorRangePart {
			p.Kind = PlanSingleIndexRange
		} else {
			p.Kind = PlanSingleIndex
		}
	default:
		p.Kind = PlanMultiIndex
		for _, f := range fields {
			p.Indexes = append(p.Indexes, t.IndexMap[f]...)
		}
	}

	for _, ref := range t.AnnExpressions {
		n := t.Node(ref)
		kn, ok := t.findKnnParams(n.Field)
		if !ok {
			continue
		}
		kind := FallbackCollectKnn
		if kn.EF > 0 {
			kind = FallbackBuildKnn
		}
		p.Fallback = append(p.Fallback, FallbackStage{Kind: kind, Field: n.Field, Params: kn})
	}

	return p
}

// findKnnParams recovers the KnnParams associated with a brute-forced ANN
// field by scanning the index map's operator list for an Ann entry
// (there is at most one per field in practice, since the builder appends
// to AnnExpressions exactly once per KnnExpr node).
func (t *Tree) findKnnParams(field string) (KnnParams, bool) {
	for _, opt := range t.IndexMap[field] {
		if opt.Operator.Kind == OperatorAnn || opt.Operator.Kind == OperatorKnn {
			return opt.Operator.Knn, true
		}
	}
	return KnnParams{}, false
}

// ExplainStep is one line of EXPLAIN output.
type ExplainStep struct {
	Operation string
	Detail    string
}

// Explain renders a Plan into the operation set named in spec.md §6:
// Iterate Table, Iterate Index, Collector, Fetch, Fallback.
func Explain(p Plan) []ExplainStep {
	var steps []ExplainStep
	switch p.Kind {
	case PlanTableIterator:
		steps = append(steps, ExplainStep{Operation: "Iterate Table", Detail: p.Table})
	case PlanSingleIndex, PlanSingleIndexRange, PlanMultiIndex:
		for _, ix := range p.Indexes {
			steps = append(steps, ExplainStep{Operation: "Iterate Index", Detail: ix.Index.Name})
		}
		if p.Kind == PlanMultiIndex {
			steps = append(steps, ExplainStep{Operation: "Collector", Detail: "union"})
		}
	}
	if p.Strategy == KeysAndValues {
		steps = append(steps, ExplainStep{Operation: "Fetch", Detail: p.Table})
	}
	for _, fb := range p.Fallback {
		name := "CollectKnn"
		if fb.Kind == FallbackBuildKnn {
			name = "BuildKnn"
		}
		steps = append(steps, ExplainStep{Operation: "Fallback", Detail: name + "(" + fb.Field + ")"})
	}
	return steps
}

// bruteForceKnn is the fallback executed when an index cannot serve a
// KNN/ANN predicate: compute the distance from target to every
// candidate's vector and keep the k closest, exercising the vector
// package's kernels directly rather than an index structure.
func bruteForceKnn(target vector.TreeVector, candidates map[string]vector.TreeVector, distance func(a, b vector.TreeVector) (float64, error), k int) ([]string, error) {
	type scored struct {
		id   string
		dist float64
	}
	scoredAll := make([]scored, 0, len(candidates))
	for id, v := range candidates {
		d, err := distance(target, v)
		if err != nil {
			return nil, err
		}
		scoredAll = append(scoredAll, scored{id: id, dist: d})
	}
	for i := 1; i < len(scoredAll); i++ {
		for j := i; j > 0 && scoredAll[j-1].dist > scoredAll[j].dist; j-- {
			scoredAll[j-1], scoredAll[j] = scoredAll[j], scoredAll[j-1]
		}
	}
	if k > len(scoredAll) {
		k = len(scoredAll)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = scoredAll[i].id
	}
	return out, nil
}
