package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/plan"
	"github.com/erigontech/ligerdb/session"
	"github.com/erigontech/ligerdb/value"
)

func TestChooseRecordStrategyTable(t *testing.T) {
	// Bare scan: no cond/group/order/projection, full permission -> KeysOnly.
	require.Equal(t, plan.KeysOnly, plan.ChooseRecordStrategy(plan.QueryShape{}))

	// P7: UPDATE/UPSERT/DELETE always read values, regardless of anything else.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{Statement: plan.StatementUpdate}))
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{Statement: plan.StatementUpsert}))
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{Statement: plan.StatementDelete}))

	// cond present but not fully indexed -> KeysAndValues; fully indexed -> falls through.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{CondPresent: true, AllCondExprsIndexed: false}))
	require.Equal(t, plan.KeysOnly, plan.ChooseRecordStrategy(plan.QueryShape{CondPresent: true, AllCondExprsIndexed: true}))

	// group present without GROUP ALL -> KeysAndValues; GROUP ALL alone falls through.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{GroupPresent: true, GroupAll: false}))
	require.Equal(t, plan.KeysOnly, plan.ChooseRecordStrategy(plan.QueryShape{GroupPresent: true, GroupAll: true}))

	// ORDER BY specific fields -> KeysAndValues.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{OrderPresent: true, OrderSpecificFields: true}))

	// any non-count projection field -> KeysAndValues.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{HasNonCountProjection: true}))

	// Specific table permission -> KeysAndValues.
	require.Equal(t, plan.KeysAndValues, plan.ChooseRecordStrategy(plan.QueryShape{Permission: plan.PermissionSpecific}))

	// count() projection under GROUP ALL -> Count.
	require.Equal(t, plan.Count, plan.ChooseRecordStrategy(plan.QueryShape{CountOnly: true, GroupAll: true}))

	// count() without GROUP ALL doesn't qualify for the Count rule -> KeysOnly.
	require.Equal(t, plan.KeysOnly, plan.ChooseRecordStrategy(plan.QueryShape{CountOnly: true}))
}

func TestChooseScanDirection(t *testing.T) {
	require.Equal(t, plan.Backward, plan.ChooseScanDirection(plan.QueryShape{OrderByIDDesc: true}))
	require.Equal(t, plan.Forward, plan.ChooseScanDirection(plan.QueryShape{}))
}

func TestSelectPlanNoIndexFallsBackToTableIterator(t *testing.T) {
	tb, err := plan.NewTreeBuilder(nil)
	require.NoError(t, err)
	tr, err := tb.Build(session.New(), "person", field("name"))
	require.NoError(t, err)

	p := plan.SelectPlan("person", tr, plan.QueryShape{})
	require.Equal(t, plan.PlanTableIterator, p.Kind)
}

func TestSelectPlanSingleEqualityUsesSingleIndex(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex})
	require.NoError(t, err)
	expr := plan.Binary{Op: plan.OpEqual, Left: field("age"), Right: plan.Lit{Value: value.Int(30)}}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	p := plan.SelectPlan("person", tr, plan.QueryShape{})
	require.Equal(t, plan.PlanSingleIndex, p.Kind)
	require.Len(t, p.Indexes, 1)
}

func TestSelectPlanRangeUsesSingleIndexRange(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex})
	require.NoError(t, err)
	expr := plan.Binary{Op: plan.OpGreater, Left: field("age"), Right: plan.Lit{Value: value.Int(30)}}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	p := plan.SelectPlan("person", tr, plan.QueryShape{})
	require.Equal(t, plan.PlanSingleIndexRange, p.Kind)
}

func TestSelectPlanMultipleIndexedFieldsUsesMultiIndex(t *testing.T) {
	nameIndex := plan.IndexDef{Name: "idx_name", Field: "name"}
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{ageIndex, nameIndex})
	require.NoError(t, err)
	expr := plan.Binary{
		Op:   plan.OpAnd,
		Left: plan.Binary{Op: plan.OpEqual, Left: field("age"), Right: plan.Lit{Value: value.Int(30)}},
		Right: plan.Binary{Op: plan.OpEqual, Left: field("name"), Right: plan.Lit{Value: value.String("bob")}},
	}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	p := plan.SelectPlan("person", tr, plan.QueryShape{})
	require.Equal(t, plan.PlanMultiIndex, p.Kind)
	require.Len(t, p.Indexes, 2)
}

func TestSelectPlanAnnFallbackAttachesFallbackStage(t *testing.T) {
	tb, err := plan.NewTreeBuilder([]plan.IndexDef{vecIndex})
	require.NoError(t, err)
	expr := plan.KnnExpr{Field: field("embedding"), Target: value.Array{value.Float(1)}, K: 3, EF: 0, Distance: "cosine"}
	tr, err := tb.Build(session.New(), "person", expr)
	require.NoError(t, err)

	p := plan.SelectPlan("person", tr, plan.QueryShape{})
	require.Equal(t, plan.PlanTableIterator, p.Kind)
	require.Len(t, p.Fallback, 1)
	require.Equal(t, plan.FallbackCollectKnn, p.Fallback[0].Kind)
}

func TestExplainTableIteratorWithFetch(t *testing.T) {
	p := plan.Plan{Kind: plan.PlanTableIterator, Table: "person", Strategy: plan.KeysAndValues}
	steps := plan.Explain(p)
	require.Equal(t, "Iterate Table", steps[0].Operation)
	require.Equal(t, "Fetch", steps[1].Operation)
}

func TestExplainMultiIndexIncludesCollector(t *testing.T) {
	p := plan.Plan{
		Kind:  plan.PlanMultiIndex,
		Table: "person",
		Indexes: []plan.IndexOption{
			{Index: ageIndex},
			{Index: plan.IndexDef{Name: "idx_name", Field: "name"}},
		},
	}
	steps := plan.Explain(p)
	var sawCollector bool
	for _, s := range steps {
		if s.Operation == "Collector" {
			sawCollector = true
		}
	}
	require.True(t, sawCollector)
}
