package parser_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/stretchr/testify/require"
)

func TestParseForFilterReturn(t *testing.T) {
	q, err := parser.Parse(`FOR u IN users FILTER u.age >= 18 RETURN u.name`)
	require.NoError(t, err)
	require.Len(t, q.Clauses, 3)
	require.IsType(t, &ast.ForClause{}, q.Clauses[0])
	require.IsType(t, &ast.FilterClause{}, q.Clauses[1])
	ret := q.Clauses[2].(*ast.ReturnClause)
	require.IsType(t, &ast.MemberExpr{}, ret.Value)
}

func TestParseLetAndArithmetic(t *testing.T) {
	q, err := parser.Parse(`LET total = 1 + 2 * 3 RETURN total`)
	require.NoError(t, err)
	let := q.Clauses[0].(*ast.LetClause)
	bin := let.Value.(*ast.BinaryExpr)
	require.Equal(t, "+", bin.Op)
	rhs := bin.Right.(*ast.BinaryExpr)
	require.Equal(t, "*", rhs.Op)
}

func TestParseInsertInto(t *testing.T) {
	q, err := parser.Parse(`INSERT {name: "a"} INTO users`)
	require.NoError(t, err)
	ins := q.Clauses[0].(*ast.InsertClause)
	require.Equal(t, "users", ins.Collection)
	require.IsType(t, &ast.ObjectLit{}, ins.Doc)
}

func TestParseCollectAggregateInto(t *testing.T) {
	q, err := parser.Parse(`FOR o IN orders COLLECT customer = o.customer AGGREGATE total = SUM(o.amount) RETURN {customer, total}`)
	require.NoError(t, err)
	collect := q.Clauses[1].(*ast.CollectClause)
	require.Len(t, collect.Groups, 1)
	require.Len(t, collect.Aggs, 1)
	require.Equal(t, "SUM", collect.Aggs[0].Func)
}

func TestParseBindVarAndRange(t *testing.T) {
	q, err := parser.Parse(`FOR i IN 1..@n RETURN i`)
	require.NoError(t, err)
	forC := q.Clauses[0].(*ast.ForClause)
	rng := forC.Source.(*ast.RangeExpr)
	require.IsType(t, &ast.IntLit{}, rng.Lo)
	require.IsType(t, &ast.BindVar{}, rng.Hi)
}

func TestParseUpsert(t *testing.T) {
	q, err := parser.Parse(`UPSERT {_key: "a"} INSERT {_key: "a", n: 1} UPDATE {n: 2} IN counters`)
	require.NoError(t, err)
	up := q.Clauses[0].(*ast.UpsertClause)
	require.Equal(t, "counters", up.Collection)
}

func TestParseSortLimit(t *testing.T) {
	q, err := parser.Parse(`FOR u IN users SORT u.age DESC LIMIT 5, 10 RETURN u`)
	require.NoError(t, err)
	sortC := q.Clauses[1].(*ast.SortClause)
	require.True(t, sortC.Keys[0].Descending)
	limitC := q.Clauses[2].(*ast.LimitClause)
	require.NotNil(t, limitC.Offset)
}

func TestParseInvalidExpressionErrors(t *testing.T) {
	_, err := parser.Parse(`RETURN ==`)
	require.Error(t, err)
}

// TestParseShortestPathScenario6 mirrors spec §8 scenario 6's exact QL
// text, which did not parse under the old direction-first grammar.
func TestParseShortestPathScenario6(t *testing.T) {
	q, err := parser.Parse(`FOR v IN SHORTEST_PATH "people/a" TO "people/c" OUTBOUND knows RETURN v._key`)
	require.NoError(t, err)
	require.Len(t, q.Clauses, 2)
	sp := q.Clauses[0].(*ast.ShortestPathClause)
	require.Equal(t, "v", sp.Var)
	require.Equal(t, "OUTBOUND", sp.Direction)
	require.Equal(t, "knows", sp.EdgeCollection)
	require.IsType(t, &ast.StringLit{}, sp.From)
	require.IsType(t, &ast.StringLit{}, sp.To)
}

func TestParseGraphVariableDepth(t *testing.T) {
	q, err := parser.Parse(`FOR v IN [1..3] OUTBOUND "people/a" knows RETURN v`)
	require.NoError(t, err)
	g := q.Clauses[0].(*ast.GraphClause)
	require.Equal(t, "v", g.Var)
	require.Equal(t, "OUTBOUND", g.Direction)
	require.Equal(t, "knows", g.EdgeCollection)
	require.IsType(t, &ast.IntLit{}, g.MinDepth)
	require.IsType(t, &ast.IntLit{}, g.MaxDepth)
}

func TestParseJoinKinds(t *testing.T) {
	for _, kind := range []string{"INNER", "LEFT", "RIGHT", "FULL", ""} {
		src := `FOR u IN users JOIN ` + kind + ` o IN orders ON o.userId == u._key RETURN u`
		q, err := parser.Parse(src)
		require.NoError(t, err, src)
		j := q.Clauses[0].(*ast.JoinClause)
		require.Equal(t, "u", j.Var)
		require.Equal(t, "o", j.JoinVar)
		if kind == "" {
			require.Equal(t, "INNER", j.Kind)
		} else {
			require.Equal(t, kind, j.Kind)
		}
	}
}

func TestParseWindowOrderByAndExtraFunctions(t *testing.T) {
	q, err := parser.Parse(`WINDOW r = RANK() OVER (PARTITION BY u.dept ORDER BY u.score DESC) RETURN r`)
	require.NoError(t, err)
	w := q.Clauses[0].(*ast.WindowClause)
	require.Equal(t, "RANK", w.Func)
	require.Len(t, w.Partition, 1)
	require.Len(t, w.Order, 1)
	require.True(t, w.Order[0].Descending)
}

func TestParseFuzzyOperator(t *testing.T) {
	q, err := parser.Parse(`FOR u IN users FILTER u.name FUZZY "alise" RETURN u`)
	require.NoError(t, err)
	filter := q.Clauses[1].(*ast.FilterClause)
	bin := filter.Cond.(*ast.BinaryExpr)
	require.Equal(t, "FUZZY", bin.Op)
}
