package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *document.Database {
	t.Helper()
	cat := document.NewCatalog(t.TempDir())
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	coll, err := db.CreateCollection("users", document.TypeDocument)
	require.NoError(t, err)
	for _, row := range []struct {
		name string
		age  int64
	}{{"alice", 30}, {"bob", 17}, {"carol", 42}} {
		b := value.NewObject()
		b.Set("name", value.String(row.name))
		b.Set("age", value.Int(row.age))
		_, err := coll.Insert("app", b.Build())
		require.NoError(t, err)
	}
	return db
}

func run(t *testing.T, db *document.Database, src string) []value.Value {
	t.Helper()
	q, err := parser.Parse(src)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	return res.Values
}

func TestForFilterReturnField(t *testing.T) {
	db := setup(t)
	got := run(t, db, `FOR u IN users FILTER u.age >= 18 SORT u.name RETURN u.name`)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got[0].AsString())
	require.Equal(t, "carol", got[1].AsString())
}

func TestCollectAggregateCount(t *testing.T) {
	db := setup(t)
	got := run(t, db, `FOR u IN users COLLECT AGGREGATE total = COUNT() RETURN total`)
	require.Len(t, got, 1)
	require.Equal(t, int64(3), got[0].AsInt())
}

func TestInsertThenGetByKey(t *testing.T) {
	db := setup(t)
	got := run(t, db, `INSERT {name: "dave", age: 50} INTO users`)
	require.Len(t, got, 1)
	key, _ := got[0].Field("_key")
	require.NotEmpty(t, key.AsString())

	coll, err := db.Collection("users")
	require.NoError(t, err)
	doc, found, err := coll.Get(key.AsString())
	require.NoError(t, err)
	require.True(t, found)
	name, _ := doc.Field("name")
	require.Equal(t, "dave", name.AsString())
}

func TestBindVariable(t *testing.T) {
	db := setup(t)
	q, err := parser.Parse(`FOR u IN users FILTER u.name == @name RETURN u.age`)
	require.NoError(t, err)
	res, err := exec.New(db, map[string]value.Value{"name": value.String("bob")}, nil).Run(q)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, int64(17), res.Values[0].AsInt())
}

func TestInsertReturnNewBindsInsertedDocument(t *testing.T) {
	db := setup(t)
	q, err := parser.Parse(`INSERT {_key: "z", name: "zoe"} INTO users RETURN NEW.name`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	require.Equal(t, "zoe", res.Values[0].AsString())
	require.Equal(t, 1, res.Stats.Inserted)
}

func TestRemoveTracksDeletedCount(t *testing.T) {
	db := setup(t)
	q, err := parser.Parse(`FOR u IN users FILTER u.name == "bob" REMOVE u IN users`)
	require.NoError(t, err)
	res, err := exec.New(db, nil, nil).Run(q)
	require.NoError(t, err)
	require.Equal(t, 1, res.Stats.Deleted)
}

func TestTemplateLiteral(t *testing.T) {
	db := setup(t)
	got := run(t, db, `FOR u IN users FILTER u.name == "alice" RETURN $"hello ${u.name}"`)
	require.Len(t, got, 1)
	require.Equal(t, "hello alice", got[0].AsString())
}
