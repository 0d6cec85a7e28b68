// Package plan implements the filter-tree builder, index map, and plan
// selector: given a WHERE expression and a table's index definitions, it
// decides which indexes can serve which parts of the expression and
// which overall scan shape to use.
//
// Expr is this package's input: a minimal, already-parsed expression
// tree. Surface query language lexing/parsing is out of scope for this
// module (see SPEC_FULL.md Non-goals); callers construct Expr values
// directly, the same role a parser's AST output plays upstream of the
// teacher's own query execution code.
package plan

import "github.com/erigontech/ligerdb/value"

// Op is a comparison/logical operator appearing in a filter expression.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpContains
	OpInside
	OpMatches
	OpKnn
)

// flip returns the operator with its operands conceptually swapped,
// matching IdiomPosition.transform() in original_source/tree.rs: a
// comparison with the indexed field on the right of the operator must be
// flipped to evaluate as if the field were on the left (e.g. `5 > age`
// becomes `age < 5`).
func (o Op) flip() Op {
	switch o {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	default:
		return o
	}
}

// Expr is the closed set of expression shapes the tree builder
// understands.
type Expr interface{ isExpr() }

// Binary is a two-operand expression: AND/OR combinators, or a
// comparison between a field and a value.
type Binary struct {
	Op          Op
	Left, Right Expr
}

func (Binary) isExpr() {}

// Idiom references a document field path, e.g. ["address", "city"].
type Idiom struct {
	Path []string
}

func (Idiom) isExpr() {}

// Lit is a literal value operand.
type Lit struct {
	Value value.Value
}

func (Lit) isExpr() {}

// MatchesExpr is a full-text MATCHES predicate against a field.
type MatchesExpr struct {
	Field  Idiom
	Search string
}

func (MatchesExpr) isExpr() {}

// KnnExpr is a <|k,ef|> nearest-neighbor predicate against a field.
type KnnExpr struct {
	Field    Idiom
	Target   value.Value // a value.Array of numbers, or a vector-bearing value
	K        int
	EF       int // 0 means brute-force (Ann), >0 means indexed approximate search
	Distance string
}

func (KnnExpr) isExpr() {}

// Subquery wraps a computed sub-expression the builder cannot further
// decompose (e.g. a function call), matching Node::Computed.
type Subquery struct {
	Value value.Value
}

func (Subquery) isExpr() {}
