package index_test

import (
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func obj(fields map[string]value.Value) value.Value {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return value.Object(keys, fields)
}

func TestPersistentIndexUniqueRejectsDuplicate(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("items", document.TypeDocument)

	mgr := index.NewManager(db.Engine())
	_, err := mgr.CreateIndex(coll, "by_sku", []string{"sku"}, true, false)
	require.NoError(t, err)

	_, err = coll.Insert("d1", obj(map[string]value.Value{"sku": value.String("A1")}))
	require.NoError(t, err)

	_, err = coll.Insert("d1", obj(map[string]value.Value{"sku": value.String("A1")}))
	require.Error(t, err)
}

func TestFulltextSearchRanksByBM25(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("articles", document.TypeDocument)

	ft := index.NewFulltext("body_ft", "body")
	coll.BindIndex(ft)

	_, _ = coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a"), "body": value.String("go databases are fast")}))
	_, _ = coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("b"), "body": value.String("slow databases are frustrating")}))

	matches := ft.Search("databases fast", 10)
	require.NotEmpty(t, matches)
	require.Equal(t, "a", matches[0].DocKey)
}

func TestGeoWithinFindsNearbyPoints(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	db, _ := cat.CreateDatabase("d1")
	coll, _ := db.CreateCollection("places", document.TypeDocument)

	g := index.NewGeo("loc", "lat", "lng")
	coll.BindIndex(g)

	_, _ = coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("near"), "lat": value.Float(40.7128), "lng": value.Float(-74.0060)}))
	_, _ = coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("far"), "lat": value.Float(51.5074), "lng": value.Float(-0.1278)}))

	hits := g.Within(40.7128, -74.0060, 1000)
	require.Len(t, hits, 1)
	require.Equal(t, "near", hits[0].DocKey)
}

func TestTTLIndexReportsExpired(t *testing.T) {
	ttl := index.NewTTL("expiry", "created_ms", 1)
	past := time.Now().Add(-time.Hour).UnixMilli()
	_ = ttl.OnInsert("old", obj(map[string]value.Value{"created_ms": value.Int(past)}))
	require.NotEmpty(t, ttl.Expired(time.Now()))
}

func TestVectorSearchFindsClosest(t *testing.T) {
	v := index.NewVector("embeddings", "vec", index.VectorParams{Dim: 2, Metric: index.MetricEuclidean})
	_ = v.OnInsert("a", obj(map[string]value.Value{"vec": value.Array([]value.Value{value.Float(0), value.Float(0)})}))
	_ = v.OnInsert("b", obj(map[string]value.Value{"vec": value.Array([]value.Value{value.Float(10), value.Float(10)})}))
	_ = v.OnInsert("c", obj(map[string]value.Value{"vec": value.Array([]value.Value{value.Float(0.1), value.Float(0.1)})}))

	hits := v.Search([]float32{0, 0}, 1)
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].DocKey)
}
