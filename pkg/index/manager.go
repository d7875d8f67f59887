package index

import (
	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/kv"
)

// Manager owns the index creation operations spec §4.4 names
// (create_index, create_geo_index, create_ttl_index,
// create_vector_index) for one database's engine. Listing and dropping
// are the package-level ListIndexes and DropIndex, and rebuilding is
// document.Collection.RebuildAllIndexes.
type Manager struct {
	engine *kv.Engine
}

func NewManager(engine *kv.Engine) *Manager {
	return &Manager{engine: engine}
}

// CreateIndex adds a persistent (field/range/unique/sparse) index and
// binds it to coll.
func (m *Manager) CreateIndex(coll *document.Collection, name string, fields []string, unique, sparse bool) (*Persistent, error) {
	ix, err := NewPersistent(m.engine, name, fields, unique, sparse)
	if err != nil {
		return nil, err
	}
	coll.BindIndex(ix)
	if err := coll.RebuildAllIndexes(); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "populate index %s", name)
	}
	return ix, nil
}

// CreateFulltextIndex adds a BM25 full-text index over one field.
func (m *Manager) CreateFulltextIndex(coll *document.Collection, name, field string) (*Fulltext, error) {
	ix := NewFulltext(name, field)
	coll.BindIndex(ix)
	if err := coll.RebuildAllIndexes(); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "populate index %s", name)
	}
	return ix, nil
}

// CreateGeoIndex adds a lat/lng point index.
func (m *Manager) CreateGeoIndex(coll *document.Collection, name, latField, lngField string) (*Geo, error) {
	ix := NewGeo(name, latField, lngField)
	coll.BindIndex(ix)
	if err := coll.RebuildAllIndexes(); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "populate index %s", name)
	}
	return ix, nil
}

// CreateTTLIndex adds a TTL index; a separate ttl.Worker polls it.
func (m *Manager) CreateTTLIndex(coll *document.Collection, name, field string, expireAfterSeconds int64) (*TTL, error) {
	ix := NewTTL(name, field, expireAfterSeconds)
	coll.BindIndex(ix)
	if err := coll.RebuildAllIndexes(); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "populate index %s", name)
	}
	return ix, nil
}

// CreateVectorIndex adds an HNSW vector index over one array field.
func (m *Manager) CreateVectorIndex(coll *document.Collection, name, field string, params VectorParams) (*Vector, error) {
	ix := NewVector(name, field, params)
	coll.BindIndex(ix)
	if err := coll.RebuildAllIndexes(); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "populate index %s", name)
	}
	return ix, nil
}

// DropIndex removes a bound index of any kind by name.
func DropIndex(coll *document.Collection, name string) error {
	if !coll.DropIndex(name) {
		return dberr.New(dberr.CodeBadRequest, "index %s not found", name)
	}
	return nil
}

// ListIndexes returns the names of every index bound to coll.
func ListIndexes(coll *document.Collection) []string {
	names := make([]string, 0)
	for _, ix := range coll.Indexes() {
		names = append(names, ix.Name())
	}
	return names
}
