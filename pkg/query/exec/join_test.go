package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

// setupJoin seeds two users (alice, bob) and three orders: two for
// alice, one for a nonexistent user, so every JOIN kind's asymmetry is
// exercised (bob has no orders, giving an unmatched left row, and the
// orphan order is an unmatched right row).
func setupJoin(t *testing.T) *document.Database {
	t.Helper()
	cat := document.NewCatalog(t.TempDir())
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	users, err := db.CreateCollection("users", document.TypeDocument)
	require.NoError(t, err)
	orders, err := db.CreateCollection("orders", document.TypeDocument)
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		b := value.NewObject()
		b.Set("_key", value.String(name))
		b.Set("name", value.String(name))
		_, err := users.Insert("app", b.Build())
		require.NoError(t, err)
	}
	for _, o := range []struct {
		key, userID string
	}{{"o1", "alice"}, {"o2", "alice"}, {"o3", "ghost"}} {
		b := value.NewObject()
		b.Set("_key", value.String(o.key))
		b.Set("userId", value.String(o.userID))
		_, err := orders.Insert("app", b.Build())
		require.NoError(t, err)
	}
	return db
}

func TestJoinInnerKeepsOnlyMatchedLeftRows(t *testing.T) {
	db := setupJoin(t)
	got := run(t, db, `FOR u IN users JOIN INNER o IN orders ON o.userId == u._key RETURN u.name`)
	require.Len(t, got, 1)
	require.Equal(t, "alice", got[0].AsString())
}

func TestJoinLeftAlwaysEmitsLeftRow(t *testing.T) {
	db := setupJoin(t)
	got := run(t, db, `FOR u IN users JOIN LEFT o IN orders ON o.userId == u._key SORT u.name RETURN u.name`)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got[0].AsString())
	require.Equal(t, "bob", got[1].AsString())
}

func TestJoinRightIteratesRightSide(t *testing.T) {
	db := setupJoin(t)
	// Only o1 and o2 match a left user (alice); the orphan o3 has no
	// matching left row, so RIGHT yields one row per matched pair.
	q, err := parser.Parse(`FOR u IN users JOIN RIGHT o IN orders ON o.userId == u._key RETURN o._key`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
}

func TestJoinFullIncludesUnmatchedRightRows(t *testing.T) {
	db := setupJoin(t)
	// FULL emits one row per left user (JoinVar = array of matches) plus
	// one extra row for the unmatched right order o3, where Var is null
	// and JoinVar is a single-element array holding that order.
	q, err := parser.Parse(`FOR u IN users JOIN FULL o IN orders ON o.userId == u._key FILTER u == null RETURN o[0]._key`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, "o3", res.Values[0].AsString())
}
