package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

// setupScores seeds a scores collection with a tie (alice, bob both at
// 90) so RANK/DENSE_RANK divergence on ties is observable.
func setupScores(t *testing.T) *document.Database {
	t.Helper()
	cat := document.NewCatalog(t.TempDir())
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	coll, err := db.CreateCollection("scores", document.TypeDocument)
	require.NoError(t, err)
	for _, row := range []struct {
		name  string
		score int64
	}{{"carol", 100}, {"alice", 90}, {"bob", 90}, {"dave", 80}} {
		b := value.NewObject()
		b.Set("name", value.String(row.name))
		b.Set("score", value.Int(row.score))
		_, err := coll.Insert("app", b.Build())
		require.NoError(t, err)
	}
	return db
}

func runOrdered(t *testing.T, db *document.Database, src, nameField string) ([]string, []value.Value) {
	t.Helper()
	q, err := parser.Parse(src)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	names := make([]string, len(res.Values))
	vals := make([]value.Value, len(res.Values))
	for i, v := range res.Values {
		n, _ := v.Field(nameField)
		names[i] = n.AsString()
		r, _ := v.Field("r")
		vals[i] = r
	}
	return names, vals
}

func TestWindowRankSkipsOnTies(t *testing.T) {
	db := setupScores(t)
	names, ranks := runOrdered(t, db,
		`FOR s IN scores WINDOW r = RANK() OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	require.Equal(t, []string{"carol", "alice", "bob", "dave"}, names)
	require.Equal(t, []int64{1, 2, 2, 4}, []int64{ranks[0].AsInt(), ranks[1].AsInt(), ranks[2].AsInt(), ranks[3].AsInt()})
}

func TestWindowDenseRankDoesNotSkip(t *testing.T) {
	db := setupScores(t)
	names, ranks := runOrdered(t, db,
		`FOR s IN scores WINDOW r = DENSE_RANK() OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	require.Equal(t, []string{"carol", "alice", "bob", "dave"}, names)
	require.Equal(t, []int64{1, 2, 2, 3}, []int64{ranks[0].AsInt(), ranks[1].AsInt(), ranks[2].AsInt(), ranks[3].AsInt()})
}

func TestWindowLagLeadWithDefault(t *testing.T) {
	db := setupScores(t)
	names, lagged := runOrdered(t, db,
		`FOR s IN scores WINDOW r = LAG(s.score, 1, -1) OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	require.Equal(t, []string{"carol", "alice", "bob", "dave"}, names)
	require.Equal(t, int64(-1), lagged[0].AsInt())
	require.Equal(t, int64(100), lagged[1].AsInt())
	require.Equal(t, int64(90), lagged[2].AsInt())
	require.Equal(t, int64(90), lagged[3].AsInt())
}

func TestWindowFirstAndLastValue(t *testing.T) {
	db := setupScores(t)
	_, firsts := runOrdered(t, db,
		`FOR s IN scores WINDOW r = FIRST_VALUE(s.score) OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	for _, v := range firsts {
		require.Equal(t, int64(100), v.AsInt())
	}

	_, lasts := runOrdered(t, db,
		`FOR s IN scores WINDOW r = LAST_VALUE(s.score) OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	require.Equal(t, []int64{100, 90, 90, 80}, []int64{lasts[0].AsInt(), lasts[1].AsInt(), lasts[2].AsInt(), lasts[3].AsInt()})
}

func TestWindowMinMax(t *testing.T) {
	db := setupScores(t)
	_, maxes := runOrdered(t, db,
		`FOR s IN scores WINDOW r = MAX(s.score) OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	for _, v := range maxes {
		require.Equal(t, int64(100), v.AsInt())
	}

	_, mins := runOrdered(t, db,
		`FOR s IN scores WINDOW r = MIN(s.score) OVER (ORDER BY s.score DESC) SORT s.score DESC RETURN {name: s.name, r: r}`,
		"name")
	require.Equal(t, []int64{100, 90, 90, 80}, []int64{mins[0].AsInt(), mins[1].AsInt(), mins[2].AsInt(), mins[3].AsInt()})
}
