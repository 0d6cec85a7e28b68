package plan

import "github.com/erigontech/ligerdb/value"

// IndexOperatorKind discriminates the sum type an index can be asked to
// serve a predicate through.
type IndexOperatorKind int

const (
	OperatorEquality IndexOperatorKind = iota
	OperatorUnion
	OperatorRangePart
	OperatorMatches
	OperatorKnn
	OperatorAnn
)

// IndexOperator is the concrete operator payload an index lookup can be
// asked to perform.
type IndexOperator struct {
	Kind  IndexOperatorKind
	Value value.Value       // Equality
	Union []value.Value     // Union (IN / OR-of-equalities)
	Range value.ValueRange  // RangePart
	Search string           // Matches
	Knn    KnnParams        // Knn / Ann
}

// KnnParams carries the nearest-neighbor predicate's parameters.
type KnnParams struct {
	Target   value.Value
	K        int
	EF       int
	Distance string
}

// IndexDef is a minimal table index definition: which field it covers and
// which distance metrics it supports for KNN (only populated for vector
// indexes).
type IndexDef struct {
	Name  string
	Field string
	// KnnMetrics lists the distance functions this index can serve a KNN
	// predicate through. Per the M-tree constraint inherited from the
	// original (only Euclidean and Manhattan satisfy the triangle
	// inequality M-tree pruning relies on), any other metric always falls
	// back to brute force regardless of what's listed here.
	KnnMetrics []string
}

// mtreeCapableMetrics is the fixed set of distance metrics an M-tree index
// can serve via indexed KNN; every other metric is brute-forced
// (CollectKnn/BuildKnn), matching the original's "KNN indexed only for
// Euclidean/Manhattan" constraint.
var mtreeCapableMetrics = map[string]bool{"euclidean": true, "manhattan": true}

// IndexOption pairs a resolved operator with the index definition
// selected to serve it.
type IndexOption struct {
	Index    IndexDef
	Operator IndexOperator
}

// IndexMap maps a field name to every IndexOption discovered for it
// during a single tree build, mirroring TreeBuilder's index_map.
type IndexMap map[string][]IndexOption

// lookupIndex finds the (first) index covering field, or ok=false.
func lookupIndex(indexes []IndexDef, field string) (IndexDef, bool) {
	for _, ix := range indexes {
		if ix.Field == field {
			return ix, true
		}
	}
	return IndexDef{}, false
}
