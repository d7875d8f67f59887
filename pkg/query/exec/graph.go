package exec

import (
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/query/ast"
	"github.com/solidb/solidb/pkg/value"
)

// loadAdjacency scans an edge collection's _from/_to fields into a
// direction-aware adjacency list (spec §4.3 graph traversal).
func (e *Executor) loadAdjacency(edgeCollection, direction string) (map[string][]edgeHop, error) {
	coll, err := e.database.Collection(edgeCollection)
	if err != nil {
		return nil, err
	}
	adjacency := map[string][]edgeHop{}
	err = coll.Scan(0, func(_ string, doc value.Value) bool {
		fromV, _ := doc.Field(document.FromField)
		toV, _ := doc.Field(document.ToField)
		from, to := fromV.AsString(), toV.AsString()
		switch direction {
		case "OUTBOUND":
			adjacency[from] = append(adjacency[from], edgeHop{to: to, doc: doc})
		case "INBOUND":
			adjacency[to] = append(adjacency[to], edgeHop{to: from, doc: doc})
		default: // ANY
			adjacency[from] = append(adjacency[from], edgeHop{to: to, doc: doc})
			adjacency[to] = append(adjacency[to], edgeHop{to: from, doc: doc})
		}
		return true
	})
	return adjacency, err
}

type edgeHop struct {
	to  string
	doc value.Value
}

// evalShortestPath runs an unweighted BFS over an edge collection's
// _from/_to fields (spec §4.3, §8 scenario 6), emitting one row per
// vertex on the reconstructed source-to-target path with Var bound to a
// synthetic {_id, _key} object. An unreachable target yields no rows
// for that input row.
func (e *Executor) evalShortestPath(cl *ast.ShortestPathClause, rows []Row) ([]Row, error) {
	adjacency, err := e.loadAdjacency(cl.EdgeCollection, cl.Direction)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		fromV, err := e.eval(cl.From, row)
		if err != nil {
			return nil, err
		}
		toV, err := e.eval(cl.To, row)
		if err != nil {
			return nil, err
		}
		path := bfsShortestPath(adjacency, fromV.AsString(), toV.AsString())
		for _, id := range path {
			e.rowsScanned++
			nr := row.clone()
			nr[cl.Var] = vertexObject(id)
			out = append(out, nr)
		}
	}
	return out, nil
}

func bfsShortestPath(adjacency map[string][]edgeHop, from, to string) []string {
	if from == to {
		return []string{from}
	}
	visited := map[string]bool{from: true}
	prev := map[string]string{}
	queue := []string{from}
	reached := false
	for len(queue) > 0 && !reached {
		cur := queue[0]
		queue = queue[1:]
		for _, hop := range adjacency[cur] {
			if visited[hop.to] {
				continue
			}
			visited[hop.to] = true
			prev[hop.to] = cur
			if hop.to == to {
				reached = true
				break
			}
			queue = append(queue, hop.to)
		}
	}
	if !visited[to] {
		return nil
	}
	path := []string{to}
	for n := to; n != from; n = prev[n] {
		path = append([]string{prev[n]}, path...)
	}
	return path
}

// evalGraph runs a variable-depth BFS traversal from cl.Start, bounded
// to [MinDepth, MaxDepth] hops along cl.EdgeCollection in cl.Direction,
// yielding one row per visited (vertex, edge) pair at each depth within
// the window (spec §4.3: "GRAPH (variable-depth traversal)"), distinct
// from SHORTEST_PATH's single-path reconstruction. Var is bound to an
// object {vertex, edge, depth} so both the reached vertex and the edge
// that reached it are available to later clauses. A vertex already
// visited at a shallower depth is not revisited (first-BFS-reach wins),
// matching ordinary graph-traversal dedup semantics.
func (e *Executor) evalGraph(cl *ast.GraphClause, rows []Row) ([]Row, error) {
	adjacency, err := e.loadAdjacency(cl.EdgeCollection, cl.Direction)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		minV, err := e.eval(cl.MinDepth, row)
		if err != nil {
			return nil, err
		}
		maxV, err := e.eval(cl.MaxDepth, row)
		if err != nil {
			return nil, err
		}
		startV, err := e.eval(cl.Start, row)
		if err != nil {
			return nil, err
		}
		min, max := int(minV.Number()), int(maxV.Number())
		start := startV.AsString()

		type frontierItem struct {
			vertex string
			depth  int
		}
		visited := map[string]bool{start: true}
		queue := []frontierItem{{vertex: start, depth: 0}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.depth >= max {
				continue
			}
			for _, hop := range adjacency[cur.vertex] {
				if visited[hop.to] {
					continue
				}
				visited[hop.to] = true
				depth := cur.depth + 1
				if depth >= min {
					e.rowsScanned++
					nr := row.clone()
					nr[cl.Var] = value.NewObject().
						Set("vertex", vertexObject(hop.to)).
						Set("edge", hop.doc).
						Set("depth", value.Int(int64(depth))).
						Build()
					out = append(out, nr)
				}
				queue = append(queue, frontierItem{vertex: hop.to, depth: depth})
			}
		}
	}
	return out, nil
}

// vertexObject builds the synthetic per-vertex object bound by
// SHORTEST_PATH/GRAPH traversal clauses: just _id and _key, since the
// edge collection's adjacency list only carries document IDs, not full
// vertex documents.
func vertexObject(id string) value.Value {
	_, key, _ := document.SplitID(id)
	return value.NewObject().
		Set(document.IDField, value.String(id)).
		Set(document.KeyField, value.String(key)).
		Build()
}
