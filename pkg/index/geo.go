package index

import (
	"math"
	"sort"
	"sync"

	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

const earthRadiusMeters = 6371000.0

// GeoPoint is a document's indexed location.
type GeoPoint struct {
	DocKey string
	Lat    float64
	Lng    float64
}

// Geo is a point index supporting radius ("geo_within") and
// nearest-neighbor ("geo_near") queries over a lat/lng field pair
// (spec §4.4 geo indexes). Points are kept in a map keyed by document
// key and scanned linearly; SoliDB's geo workloads are small enough that this
// beats the complexity of a proper R-tree for this index kind.
type Geo struct {
	name      string
	latField  string
	lngField  string

	mu     sync.RWMutex
	points map[string]GeoPoint
}

func NewGeo(indexName, latField, lngField string) *Geo {
	return &Geo{name: indexName, latField: latField, lngField: lngField, points: make(map[string]GeoPoint)}
}

func (g *Geo) Name() string { return g.name }

func (g *Geo) extract(doc value.Value) (GeoPoint, bool) {
	latV, ok1 := doc.Field(g.latField)
	lngV, ok2 := doc.Field(g.lngField)
	if !ok1 || !ok2 || !latV.IsNumber() || !lngV.IsNumber() {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: latV.Number(), Lng: lngV.Number()}, true
}

func (g *Geo) CheckInsert(key string, doc value.Value) error { return nil }

func (g *Geo) OnInsert(key string, doc value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("geo", "insert").Inc()
	return g.set(key, doc)
}

func (g *Geo) set(key string, doc value.Value) error {
	p, ok := g.extract(doc)
	if !ok {
		return nil
	}
	p.DocKey = key
	g.mu.Lock()
	g.points[key] = p
	g.mu.Unlock()
	return nil
}

func (g *Geo) OnUpdate(key string, old, updated value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("geo", "update").Inc()
	g.remove(key)
	return g.set(key, updated)
}

func (g *Geo) OnDelete(key string, old value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("geo", "delete").Inc()
	g.remove(key)
	return nil
}

func (g *Geo) remove(key string) {
	g.mu.Lock()
	delete(g.points, key)
	g.mu.Unlock()
}

// haversine returns the great-circle distance in meters between two points.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// GeoHit is one distance-ranked geo query result.
type GeoHit struct {
	DocKey       string
	DistanceMeters float64
}

// Within returns every indexed point inside radiusMeters of (lat, lng),
// nearest first.
func (g *Geo) Within(lat, lng, radiusMeters float64) []GeoHit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var hits []GeoHit
	for _, p := range g.points {
		d := haversine(lat, lng, p.Lat, p.Lng)
		if d <= radiusMeters {
			hits = append(hits, GeoHit{DocKey: p.DocKey, DistanceMeters: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceMeters < hits[j].DistanceMeters })
	return hits
}

// Near returns the k nearest indexed points to (lat, lng).
func (g *Geo) Near(lat, lng float64, k int) []GeoHit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	hits := make([]GeoHit, 0, len(g.points))
	for _, p := range g.points {
		hits = append(hits, GeoHit{DocKey: p.DocKey, DistanceMeters: haversine(lat, lng, p.Lat, p.Lng)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceMeters < hits[j].DistanceMeters })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
