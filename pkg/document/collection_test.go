package document_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *document.Catalog {
	t.Helper()
	return document.NewCatalog(t.TempDir())
}

func obj(fields map[string]value.Value) value.Value {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return value.Object(keys, fields)
}

func TestInsertAssignsKeyAndID(t *testing.T) {
	cat := openTestCatalog(t)
	db, err := cat.CreateDatabase("d1")
	require.NoError(t, err)
	coll, err := db.CreateCollection("widgets", document.TypeDocument)
	require.NoError(t, err)

	doc, err := coll.Insert("d1", obj(map[string]value.Value{"name": value.String("sprocket")}))
	require.NoError(t, err)

	key, ok := doc.Field(document.KeyField)
	require.True(t, ok)
	require.NotEmpty(t, key.AsString())

	id, ok := doc.Field(document.IDField)
	require.True(t, ok)
	require.Equal(t, "widgets/"+key.AsString(), id.AsString())
	require.EqualValues(t, 1, coll.Count())
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	cat := openTestCatalog(t)
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("widgets", document.TypeDocument)

	_, err := coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a"), "v": value.Int(1)}))
	require.NoError(t, err)

	_, err = coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a"), "v": value.Int(2)}))
	require.Error(t, err)
}

func TestUpdateMergesShallowByDefault(t *testing.T) {
	cat := openTestCatalog(t)
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("widgets", document.TypeDocument)

	doc, _ := coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a"), "x": value.Int(1), "y": value.Int(2)}))
	key, _ := doc.Field(document.KeyField)

	updated, err := coll.Update("d1", key.AsString(), obj(map[string]value.Value{"y": value.Int(99)}), false)
	require.NoError(t, err)

	x, _ := updated.Field("x")
	y, _ := updated.Field("y")
	require.Equal(t, int64(1), x.AsInt())
	require.Equal(t, int64(99), y.AsInt())
}

func TestDeleteThenGetNotFound(t *testing.T) {
	cat := openTestCatalog(t)
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("widgets", document.TypeDocument)

	doc, _ := coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a")}))
	key, _ := doc.Field(document.KeyField)

	require.NoError(t, coll.Delete("d1", key.AsString()))
	_, found, err := coll.Get(key.AsString())
	require.NoError(t, err)
	require.False(t, found)
	require.EqualValues(t, 0, coll.Count())
}

func TestEdgeCollectionRequiresFromTo(t *testing.T) {
	cat := openTestCatalog(t)
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("edges", document.TypeEdge)

	_, err := coll.Insert("d1", obj(map[string]value.Value{"weight": value.Int(1)}))
	require.Error(t, err)

	_, err = coll.Insert("d1", obj(map[string]value.Value{
		"_from": value.String("nodes/a"),
		"_to":   value.String("nodes/b"),
	}))
	require.NoError(t, err)
}

func TestTimeseriesRejectsUpdate(t *testing.T) {
	cat := openTestCatalog(t)
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("metrics", document.TypeTimeseries)

	doc, _ := coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a")}))
	key, _ := doc.Field(document.KeyField)

	_, err := coll.Update("d1", key.AsString(), obj(map[string]value.Value{"v": value.Int(1)}), false)
	require.Error(t, err)
}
