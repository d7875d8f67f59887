package exec

import (
	"sync"

	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

// ViewRegistry tracks CREATE STREAM and CREATE/REFRESH MATERIALIZED
// VIEW definitions for one database (spec §4.3 supplemented
// features). Streams register a standing query definition, readable
// through StreamQuery; the registry does not run a stream's query or
// push documents to subscribers. Materialized views cache their
// last-computed row set until REFRESH re-runs the query.
type ViewRegistry struct {
	mu            sync.RWMutex
	streams       map[string]*ast.Query
	materialized  map[string]*ast.Query
	materialRows  map[string][]value.Value
}

// NewViewRegistry creates an empty registry.
func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{
		streams:      make(map[string]*ast.Query),
		materialized: make(map[string]*ast.Query),
		materialRows: make(map[string][]value.Value),
	}
}

func (r *ViewRegistry) RegisterStream(name string, q *ast.Query) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[name] = q
}

func (r *ViewRegistry) StreamQuery(name string) (*ast.Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.streams[name]
	return q, ok
}

// Streams returns every registered stream name.
func (r *ViewRegistry) Streams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.streams))
	for n := range r.streams {
		names = append(names, n)
	}
	return names
}

func (r *ViewRegistry) PutMaterialized(name string, q *ast.Query, rows []value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materialized[name] = q
	r.materialRows[name] = rows
}

func (r *ViewRegistry) Query(name string) (*ast.Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.materialized[name]
	return q, ok
}

// Rows returns the cached rows of a materialized view as of its last
// CREATE/REFRESH.
func (r *ViewRegistry) Rows(name string) ([]value.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, ok := r.materialRows[name]
	return rows, ok
}
