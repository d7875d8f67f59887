package index

import (
	"sync"
	"time"

	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// TTL tracks, per document, the expiry deadline derived from a
// timestamp field plus a fixed offset (spec §4.7 TTL worker: "field +
// expire_after_seconds"). The index itself does not delete documents;
// ttl.Worker polls Expired and deletes through the owning collection
// so that index maintenance and change events fire normally.
type TTL struct {
	name           string
	field          string
	expireAfter    time.Duration

	mu       sync.RWMutex
	deadline map[string]time.Time
}

func NewTTL(indexName, field string, expireAfterSeconds int64) *TTL {
	return &TTL{
		name:        indexName,
		field:       field,
		expireAfter: time.Duration(expireAfterSeconds) * time.Second,
		deadline:    make(map[string]time.Time),
	}
}

func (t *TTL) Name() string { return t.name }

func (t *TTL) extractDeadline(doc value.Value) (time.Time, bool) {
	v, ok := doc.Field(t.field)
	if !ok {
		return time.Time{}, false
	}
	switch v.Kind() {
	case value.KindInt:
		return time.UnixMilli(v.AsInt()).Add(t.expireAfter), true
	case value.KindFloat:
		return time.UnixMilli(int64(v.Number())).Add(t.expireAfter), true
	case value.KindString:
		ts, err := time.Parse(time.RFC3339, v.AsString())
		if err != nil {
			return time.Time{}, false
		}
		return ts.Add(t.expireAfter), true
	default:
		return time.Time{}, false
	}
}

func (t *TTL) CheckInsert(key string, doc value.Value) error { return nil }

func (t *TTL) OnInsert(key string, doc value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("ttl", "insert").Inc()
	t.set(key, doc)
	return nil
}

func (t *TTL) set(key string, doc value.Value) {
	if dl, ok := t.extractDeadline(doc); ok {
		t.mu.Lock()
		t.deadline[key] = dl
		t.mu.Unlock()
	}
}

func (t *TTL) OnUpdate(key string, old, updated value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("ttl", "update").Inc()
	t.clear(key)
	t.set(key, updated)
	return nil
}

func (t *TTL) OnDelete(key string, old value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("ttl", "delete").Inc()
	t.clear(key)
	return nil
}

func (t *TTL) clear(key string) {
	t.mu.Lock()
	delete(t.deadline, key)
	t.mu.Unlock()
}

// Expired returns every document key whose deadline has passed as of now.
func (t *TTL) Expired(now time.Time) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var keys []string
	for k, dl := range t.deadline {
		if !now.Before(dl) {
			keys = append(keys, k)
		}
	}
	return keys
}
