package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

// setupGraph reproduces spec §8 scenario 6: vertices people/{a,b,c,d}
// and edges a->b, b->c, a->d, d->c in the "knows" edge collection.
func setupGraph(t *testing.T) *document.Database {
	t.Helper()
	cat := document.NewCatalog(t.TempDir())
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	_, err = db.CreateCollection("people", document.TypeDocument)
	require.NoError(t, err)
	edges, err := db.CreateCollection("knows", document.TypeEdge)
	require.NoError(t, err)
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"a", "d"}, {"d", "c"}} {
		b := value.NewObject()
		b.Set(document.FromField, value.String("people/"+e[0]))
		b.Set(document.ToField, value.String("people/"+e[1]))
		_, err := edges.Insert("app", b.Build())
		require.NoError(t, err)
	}
	return db
}

func TestShortestPathScenario6(t *testing.T) {
	db := setupGraph(t)
	q, err := parser.Parse(`FOR v IN SHORTEST_PATH "people/a" TO "people/c" OUTBOUND knows RETURN v._key`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	got := make([]string, len(res.Values))
	for i, v := range res.Values {
		got[i] = v.AsString()
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestGraphVariableDepthTraversal(t *testing.T) {
	db := setupGraph(t)
	q, err := parser.Parse(`FOR v IN [1..2] OUTBOUND "people/a" knows RETURN v.vertex._key`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	got := map[string]bool{}
	for _, v := range res.Values {
		got[v.AsString()] = true
	}
	require.True(t, got["b"], "depth-1 neighbor b missing")
	require.True(t, got["d"], "depth-1 neighbor d missing")
	require.True(t, got["c"], "depth-2 neighbor c missing")
}

func TestGraphVariableDepthRespectsMinDepth(t *testing.T) {
	db := setupGraph(t)
	q, err := parser.Parse(`FOR v IN [2..2] OUTBOUND "people/a" knows RETURN v.vertex._key`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	got := map[string]bool{}
	for _, v := range res.Values {
		got[v.AsString()] = true
	}
	require.False(t, got["b"], "depth-1 neighbor b should be excluded by min depth 2")
	require.True(t, got["c"])
}
