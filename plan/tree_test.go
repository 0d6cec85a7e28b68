package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/plan"
	"github.com/erigontech/ligerdb/session"
	"github.com/erigontech/ligerdb/value"
)

var ageIndex = plan.IndexDef{Name: "idx_age", Field: "age"}
var vecIndex = plan.IndexDef{Name: "idx_vec", Field: "embedding", KnnMetrics: []string{"euclidean"}}

func field(path ...string) plan.Idiom { return plan.Idiom{Path: path} }

func TestEqualityResolvesToIndexOption(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex})
	require.NoError(t, err)

	expr := plan.Binary{Op: plan.OpEqual, Left: field("age"), Right: plan.Lit{Value: value.Int(30)}}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	opts := tr.IndexMap["age"]
	require.Len(t, opts, 1)
	require.Equal(t, plan.OperatorEquality, opts[0].Operator.Kind)
}

func TestFlippedComparisonStillResolves(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex})
	require.NoError(t, err)

	// 5 < age  should resolve the same as  age > 5
	expr := plan.Binary{Op: plan.OpLess, Left: plan.Lit{Value: value.Int(5)}, Right: field("age")}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	opts := tr.IndexMap["age"]
	require.Len(t, opts, 1)
	require.Equal(t, plan.OperatorRangePart, opts[0].Operator.Kind)
}

func TestNonIndexedFieldProducesNoIndexOption(t *testing.T) {
	tb, err := plan.NewTreeBuilder(nil)
	require.NoError(t, err)

	expr := plan.Binary{Op: plan.OpEqual, Left: field("name"), Right: plan.Lit{Value: value.String("bob")}}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	require.Empty(t, tr.IndexMap["name"])
}

func TestDiveBudgetExhaustion(t *testing.T) {
	tb, err := plan.NewTreeBuilder(nil)
	require.NoError(t, err)

	opt := session.New().WithMaxComputationDepth(0)
	_, err = tb.Build(opt, "person", field("name"))
	require.Error(t, err)
}

func TestKnnWithinMtreeMetricUsesIndexedKnn(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{vecIndex})
	require.NoError(t, err)

	expr := plan.KnnExpr{Field: field("embedding"), Target: value.Array{value.Float(1), value.Float(2)}, K: 5, EF: 40, Distance: "euclidean"}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	require.Len(t, tr.KnnExpressions, 1)
	require.Empty(t, tr.AnnExpressions)
}

func TestKnnOutsideMtreeMetricFallsBackToBruteForce(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{vecIndex})
	require.NoError(t, err)

	expr := plan.KnnExpr{Field: field("embedding"), Target: value.Array{value.Float(1), value.Float(2)}, K: 5, EF: 40, Distance: "cosine"}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	require.Empty(t, tr.KnnExpressions)
	require.Len(t, tr.AnnExpressions, 1)
}

func TestMatchesExprRegistersIndexOption(t *testing.T) {
	ftsIndex := plan.IndexDef{Name: "idx_fts", Field: "body"}
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ftsIndex})
	require.NoError(t, err)

	expr := plan.MatchesExpr{Field: field("body"), Search: "hello"}
	tr, err := tb.Build(session.New(), "post", expr)
	require.NoError(t, err)

	opts := tr.IndexMap["body"]
	require.Len(t, opts, 1)
	require.Equal(t, plan.OperatorMatches, opts[0].Operator.Kind)
}

func TestMemoizationReturnsSameArenaSlotForIdenticalSubexpression(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex})
	require.NoError(t, err)

	left := plan.Binary{Op: plan.OpEqual, Left: field("age"), Right: plan.Lit{Value: value.Int(30)}}
	expr := plan.Binary{Op: plan.OpAnd, Left: left, Right: left}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	root := tr.Node(tr.Root)
	require.Equal(t, root.Left, root.Right)
}
