package index

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// VectorMetric selects the distance function used for HNSW search and
// for ranking results (spec §4.4 vector index: "euclidean, cosine, or
// dot product").
type VectorMetric string

const (
	MetricEuclidean VectorMetric = "euclidean"
	MetricCosine    VectorMetric = "cosine"
	MetricDot       VectorMetric = "dot"
)

// VectorParams configures an HNSW graph (spec §4.4: "configurable M,
// efConstruction, efSearch").
type VectorParams struct {
	Dim            int
	Metric         VectorMetric
	M              int
	EfConstruction int
	EfSearch       int
}

func (p VectorParams) withDefaults() VectorParams {
	if p.M <= 0 {
		p.M = 16
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = 200
	}
	if p.EfSearch <= 0 {
		p.EfSearch = 64
	}
	if p.Metric == "" {
		p.Metric = MetricEuclidean
	}
	return p
}

type vecNode struct {
	key       string
	vec       []float32
	quantized []int8
	level     int
	neighbors [][]string // per-level neighbor doc keys
}

// Vector is an approximate nearest-neighbor index implementing HNSW
// (Hierarchical Navigable Small World graphs): documents are inserted
// into a multi-layer proximity graph, and search descends from the
// top layer doing greedy beam search at each level down to layer 0.
type Vector struct {
	name   string
	field  string
	params VectorParams

	mu          sync.RWMutex
	nodes       map[string]*vecNode
	entryPoint  string
	maxLevel    int
	quantScale  float64
	quantOffset float64
	quantized   bool
}

func NewVector(indexName, field string, params VectorParams) *Vector {
	return &Vector{
		name:   indexName,
		field:  field,
		params: params.withDefaults(),
		nodes:  make(map[string]*vecNode),
	}
}

func (v *Vector) Name() string { return v.name }

func (v *Vector) extractVector(doc value.Value) ([]float32, bool) {
	f, ok := doc.Field(v.field)
	if !ok || f.Kind() != value.KindArray {
		return nil, false
	}
	arr := f.AsArray()
	out := make([]float32, 0, len(arr))
	for _, item := range arr {
		if !item.IsNumber() {
			return nil, false
		}
		out = append(out, float32(item.Number()))
	}
	if v.params.Dim != 0 && len(out) != v.params.Dim {
		return nil, false
	}
	return out, true
}

func (v *Vector) CheckInsert(key string, doc value.Value) error { return nil }

func (v *Vector) OnInsert(key string, doc value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("vector", "insert").Inc()
	vec, ok := v.extractVector(doc)
	if !ok {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.insertLocked(key, vec)
	return nil
}

func (v *Vector) OnUpdate(key string, old, updated value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("vector", "update").Inc()
	v.remove(key)
	vec, ok := v.extractVector(updated)
	if !ok {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.insertLocked(key, vec)
	return nil
}

func (v *Vector) OnDelete(key string, old value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("vector", "delete").Inc()
	v.remove(key)
	return nil
}

func (v *Vector) remove(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.nodes, key)
	for _, n := range v.nodes {
		for lvl := range n.neighbors {
			n.neighbors[lvl] = removeString(n.neighbors[lvl], key)
		}
	}
	if v.entryPoint == key {
		v.entryPoint = ""
		for k := range v.nodes {
			v.entryPoint = k
			break
		}
	}
}

func removeString(list []string, s string) []string {
	for i, x := range list {
		if x == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (v *Vector) distance(a, b []float32) float64 {
	switch v.params.Metric {
	case MetricCosine:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	case MetricDot:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return -dot
	default: // euclidean
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}
}

func randomLevel(m int) int {
	level := 0
	ml := 1.0 / math.Log(float64(m))
	for rand.Float64() < math.Exp(-float64(level)/ml) && level < 16 {
		level++
	}
	return level
}

func (v *Vector) insertLocked(key string, vec []float32) {
	level := randomLevel(v.params.M)
	node := &vecNode{key: key, vec: vec, level: level, neighbors: make([][]string, level+1)}
	v.nodes[key] = node

	if v.entryPoint == "" {
		v.entryPoint = key
		v.maxLevel = level
		return
	}

	entry := v.entryPoint
	for lvl := v.maxLevel; lvl > level; lvl-- {
		entry = v.greedyClosest(entry, vec, lvl)
	}

	for lvl := min(level, v.maxLevel); lvl >= 0; lvl-- {
		candidates := v.searchLayer(vec, entry, v.params.EfConstruction, lvl)
		neighbors := selectNeighbors(candidates, v.params.M)
		node.neighbors[lvl] = neighbors
		for _, nb := range neighbors {
			other := v.nodes[nb]
			if other == nil || lvl >= len(other.neighbors) {
				continue
			}
			other.neighbors[lvl] = append(other.neighbors[lvl], key)
			if len(other.neighbors[lvl]) > v.params.M*2 {
				other.neighbors[lvl] = trimNeighbors(v, other.vec, other.neighbors[lvl], v.params.M)
			}
		}
		if len(candidates) > 0 {
			entry = candidates[0].key
		}
	}

	if level > v.maxLevel {
		v.maxLevel = level
		v.entryPoint = key
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type candidate struct {
	key  string
	dist float64
}

func (v *Vector) greedyClosest(entry string, target []float32, level int) string {
	current := entry
	currentDist := v.distance(v.nodes[current].vec, target)
	for {
		improved := false
		node := v.nodes[current]
		if level >= len(node.neighbors) {
			break
		}
		for _, nb := range node.neighbors[level] {
			other := v.nodes[nb]
			if other == nil {
				continue
			}
			d := v.distance(other.vec, target)
			if d < currentDist {
				currentDist = d
				current = nb
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return current
}

// searchLayer returns up to ef candidates closest to target at the
// given level, sorted nearest-first.
func (v *Vector) searchLayer(target []float32, entry string, ef int, level int) []candidate {
	visited := map[string]bool{entry: true}
	entryDist := v.distance(v.nodes[entry].vec, target)
	candidates := []candidate{{entry, entryDist}}
	results := []candidate{{entry, entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
		if len(results) >= ef && c.dist > results[len(results)-1].dist {
			break
		}

		node := v.nodes[c.key]
		if level >= len(node.neighbors) {
			continue
		}
		for _, nb := range node.neighbors[level] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			other := v.nodes[nb]
			if other == nil {
				continue
			}
			d := v.distance(other.vec, target)
			candidates = append(candidates, candidate{nb, d})
			results = append(results, candidate{nb, d})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	if len(results) > ef {
		results = results[:ef]
	}
	return results
}

func selectNeighbors(candidates []candidate, m int) []string {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out
}

func trimNeighbors(v *Vector, vec []float32, neighborKeys []string, m int) []string {
	cands := make([]candidate, 0, len(neighborKeys))
	for _, k := range neighborKeys {
		n := v.nodes[k]
		if n == nil {
			continue
		}
		cands = append(cands, candidate{k, v.distance(vec, n.vec)})
	}
	return selectNeighbors(cands, m)
}

// VectorHit is one ranked nearest-neighbor search result.
type VectorHit struct {
	DocKey   string
	Distance float64
}

// Search finds the k approximate nearest neighbors of query.
func (v *Vector) Search(query []float32, k int) []VectorHit {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.entryPoint == "" {
		return nil
	}
	ef := v.params.EfSearch
	if ef < k {
		ef = k
	}
	entry := v.entryPoint
	for lvl := v.maxLevel; lvl > 0; lvl-- {
		entry = v.greedyClosest(entry, query, lvl)
	}
	candidates := v.searchLayer(query, entry, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = VectorHit{DocKey: c.key, Distance: c.dist}
	}
	return hits
}

// Quantize computes a single global scale/offset over every stored
// vector and stores an int8 quantized copy alongside the float32
// original (spec §4.4: "optional scalar quantization" for memory
// reduction; search itself still uses the float32 vectors for
// accuracy, matching a typical scalar-quantization tradeoff where
// quantized vectors serve coarse filtering rather than final ranking).
func (v *Vector) Quantize() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var min, max float32
	first := true
	for _, n := range v.nodes {
		for _, x := range n.vec {
			if first {
				min, max = x, x
				first = false
				continue
			}
			if x < min {
				min = x
			}
			if x > max {
				max = x
			}
		}
	}
	if first || max == min {
		return
	}
	scale := float64(max-min) / 255.0
	v.quantScale = scale
	v.quantOffset = float64(min)
	v.quantized = true
	for _, n := range v.nodes {
		q := make([]int8, len(n.vec))
		for i, x := range n.vec {
			q[i] = int8(math.Round((float64(x)-v.quantOffset)/scale) - 128)
		}
		n.quantized = q
	}
}
