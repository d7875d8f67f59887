package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/stretchr/testify/require"
)

func TestIndexedScanSubstitutesEqualityLookup(t *testing.T) {
	db := setup(t)
	coll, err := db.Collection("users")
	require.NoError(t, err)
	mgr := index.NewManager(db.Engine())
	_, err = mgr.CreateIndex(coll, "by_name", []string{"name"}, false, false)
	require.NoError(t, err)

	q, err := parser.Parse(`FOR u IN users FILTER u.name == "bob" RETURN u.age`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, int64(17), res.Values[0].AsInt())
	require.Equal(t, 1, res.Stats.RowsScanned)

	plan, err := exec.New(db, nil, nil).Explain(q)
	require.NoError(t, err)
	require.Equal(t, "IndexScan", plan.Steps[0].Clause)
}

func TestIndexedScanSubstitutesRangeLookup(t *testing.T) {
	db := setup(t)
	coll, err := db.Collection("users")
	require.NoError(t, err)
	mgr := index.NewManager(db.Engine())
	_, err = mgr.CreateIndex(coll, "by_age", []string{"age"}, false, false)
	require.NoError(t, err)

	got := run(t, db, `FOR u IN users FILTER u.age >= 18 SORT u.name RETURN u.name`)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got[0].AsString())
	require.Equal(t, "carol", got[1].AsString())
}

func TestIndexedScanFallsBackWithoutMatchingIndex(t *testing.T) {
	db := setup(t)
	got := run(t, db, `FOR u IN users FILTER u.name == "bob" RETURN u.age`)
	require.Len(t, got, 1)
	require.Equal(t, int64(17), got[0].AsInt())
}
