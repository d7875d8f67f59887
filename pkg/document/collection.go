package document

import (
	"sync"
	"sync/atomic"

	"github.com/solidb/solidb/pkg/changefeed"
	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/kv"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// docKeyPrefix is the byte prefix for document rows within a
// collection's column family (spec §4.4 Encoding: "distinct prefixes
// for blobs, index entries").
const docKeyPrefix = "d:"

func docKey(key string) []byte {
	return []byte(docKeyPrefix + key)
}

// Collection is a named, typed container of documents. It is
// co-owned by the document store and the index subsystem (spec §3
// Ownership): the Collection holds its own bound indexes and routes
// every mutation through them.
type Collection struct {
	Name string
	Type CollectionType

	mu sync.RWMutex

	engine  *kv.Engine
	family  kv.Family
	count   int64
	topic   *changefeed.Topic
	indexes []IndexMaintainer
	schema  *Schema // optional JSON-Schema-ish validator, nil if unset
}

func newCollection(name string, ctype CollectionType, engine *kv.Engine) *Collection {
	return &Collection{
		Name:   name,
		Type:   ctype,
		engine: engine,
		family: kv.Family(name),
		topic:  changefeed.NewTopic(),
	}
}

// Topic returns the collection's change-event broadcast topic.
func (c *Collection) Topic() *changefeed.Topic { return c.topic }

// Count returns the live document count.
func (c *Collection) Count() int64 { return atomic.LoadInt64(&c.count) }

// BindIndex attaches an index maintainer; newly bound indexes are not
// retroactively populated (use RebuildAllIndexes for that).
func (c *Collection) BindIndex(ix IndexMaintainer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = append(c.indexes, ix)
}

// Indexes returns the bound index maintainers.
func (c *Collection) Indexes() []IndexMaintainer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]IndexMaintainer(nil), c.indexes...)
}

// DropIndex unbinds an index by name.
func (c *Collection) DropIndex(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ix := range c.indexes {
		if ix.Name() == name {
			c.indexes = append(c.indexes[:i], c.indexes[i+1:]...)
			return true
		}
	}
	return false
}

// SetSchema attaches optional per-collection JSON Schema validation
// (spec §1 Non-goals: "schema enforcement beyond optional per-collection
// JSON Schema validation").
func (c *Collection) SetSchema(s *Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = s
}

func (c *Collection) validate(doc value.Value) error {
	c.mu.RLock()
	s := c.schema
	c.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Validate(doc)
}

// Insert assigns/validates the document, runs unique-index checks,
// writes the row, updates every index, increments the count, and
// publishes an Insert change event (spec §4.4).
func (c *Collection) Insert(db string, doc value.Value) (value.Value, error) {
	c.mu.RLock()
	ctype := c.Type
	c.mu.RUnlock()

	finalDoc, key, err := PrepareInsert(ctype, c.Name, doc)
	if err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInvalidDocument, err, "insert into %s", c.Name)
	}
	if err := c.validate(finalDoc); err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInvalidDocument, err, "schema validation failed")
	}

	existing, err := c.engine.Get(c.family, docKey(key))
	if err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "read before insert")
	}
	if existing != nil {
		return value.Null(), dberr.New(dberr.CodeInvalidDocument, "duplicate key %q in %s", key, c.Name)
	}

	for _, ix := range c.Indexes() {
		if err := ix.CheckInsert(key, finalDoc); err != nil {
			return value.Null(), dberr.Wrap(dberr.CodeTransactionConflict, err, "unique index violation")
		}
	}

	raw, err := encodeDoc(finalDoc)
	if err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "encode document")
	}
	if err := c.engine.Put(c.family, docKey(key), raw); err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "write document")
	}

	for _, ix := range c.Indexes() {
		if err := ix.OnInsert(key, finalDoc); err != nil {
			return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "index maintenance")
		}
	}

	metrics.DocumentsTotal.WithLabelValues(db, c.Name).Set(float64(atomic.AddInt64(&c.count, 1)))
	c.topic.Publish(&changefeed.Event{Type: changefeed.EventInsert, Database: db, Collection: c.Name, Key: key, New: &finalDoc})
	return finalDoc, nil
}

// InsertBatch groups documents into a single atomic KV write batch.
// Per spec §4.4, index updates for a batch insert are asynchronous and
// best-effort (must eventually converge): bound indexes are updated in a
// background goroutine after the batch commits, without blocking it.
func (c *Collection) InsertBatch(db string, docs []value.Value) ([]value.Value, error) {
	c.mu.RLock()
	ctype := c.Type
	c.mu.RUnlock()

	var writes []kv.Write
	finals := make([]value.Value, 0, len(docs))
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		finalDoc, key, err := PrepareInsert(ctype, c.Name, doc)
		if err != nil {
			return nil, dberr.Wrap(dberr.CodeInvalidDocument, err, "batch insert into %s", c.Name)
		}
		raw, err := encodeDoc(finalDoc)
		if err != nil {
			return nil, dberr.Wrap(dberr.CodeInternalError, err, "encode document")
		}
		writes = append(writes, kv.Write{Family: c.family, Key: docKey(key), Value: raw})
		finals = append(finals, finalDoc)
		keys = append(keys, key)
	}

	if err := c.engine.WriteBatch(writes); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "batch write")
	}
	metrics.DocumentsTotal.WithLabelValues(db, c.Name).Set(float64(atomic.AddInt64(&c.count, int64(len(docs)))))

	// Best-effort async index maintenance: index membership for bulk
	// inserts is only eventually consistent (spec §3 Invariants).
	go func() {
		for i, key := range keys {
			for _, ix := range c.Indexes() {
				_ = ix.OnInsert(key, finals[i])
			}
		}
	}()

	for i, key := range keys {
		c.topic.Publish(&changefeed.Event{Type: changefeed.EventInsert, Database: db, Collection: c.Name, Key: key, New: &finals[i]})
	}
	return finals, nil
}

// Get performs a point read by key.
func (c *Collection) Get(key string) (value.Value, bool, error) {
	raw, err := c.engine.Get(c.family, docKey(key))
	if err != nil {
		return value.Null(), false, dberr.Wrap(dberr.CodeInternalError, err, "get %s", key)
	}
	if raw == nil {
		return value.Null(), false, nil
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return value.Null(), false, dberr.Wrap(dberr.CodeInternalError, err, "decode document")
	}
	return doc, true, nil
}

// Scan performs an ordered prefix scan over document rows, up to limit
// (0 = unbounded).
func (c *Collection) Scan(limit int, fn func(key string, doc value.Value) bool) error {
	return c.engine.Scan(c.family, []byte(docKeyPrefix), limit, func(k, v []byte) bool {
		doc, err := decodeDoc(v)
		if err != nil {
			return true // skip corrupt row, keep scanning
		}
		return fn(string(k[len(docKeyPrefix):]), doc)
	})
}

// Update reads-modifies-writes a document, shallow-merging unless
// replace is true, re-evaluating every index (spec §4.4).
func (c *Collection) Update(dbName, key string, patch value.Value, replace bool) (value.Value, error) {
	if c.Type == TypeTimeseries {
		return value.Null(), dberr.New(dberr.CodeOperationNotSupported, "update on timeseries collection %s", c.Name)
	}

	old, found, err := c.Get(key)
	if err != nil {
		return value.Null(), err
	}
	if !found {
		return value.Null(), dberr.New(dberr.CodeDocumentNotFound, "document %s/%s", c.Name, key)
	}

	var updated value.Value
	if replace {
		b := value.NewObject()
		for _, k := range patch.Keys() {
			f, _ := patch.Field(k)
			b.Set(k, f)
		}
		if kf, ok := old.Field(KeyField); ok {
			b.Set(KeyField, kf)
		}
		if idf, ok := old.Field(IDField); ok {
			b.Set(IDField, idf)
		}
		updated = b.Build()
	} else {
		updated = MergeShallow(old, patch)
	}

	if err := c.validate(updated); err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInvalidDocument, err, "schema validation failed")
	}

	raw, err := encodeDoc(updated)
	if err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "encode document")
	}
	if err := c.engine.Put(c.family, docKey(key), raw); err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "write document")
	}

	for _, ix := range c.Indexes() {
		if err := ix.OnUpdate(key, old, updated); err != nil {
			return value.Null(), dberr.Wrap(dberr.CodeInternalError, err, "index maintenance")
		}
	}

	c.topic.Publish(&changefeed.Event{Type: changefeed.EventUpdate, Database: dbName, Collection: c.Name, Key: key, New: &updated, Old: &old})
	return updated, nil
}

// Delete tombstones a row, removes it from every index, and decrements
// the count.
func (c *Collection) Delete(dbName, key string) error {
	old, found, err := c.Get(key)
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.CodeDocumentNotFound, "document %s/%s", c.Name, key)
	}

	if err := c.engine.Delete(c.family, docKey(key)); err != nil {
		return dberr.Wrap(dberr.CodeInternalError, err, "delete document")
	}
	for _, ix := range c.Indexes() {
		if err := ix.OnDelete(key, old); err != nil {
			return dberr.Wrap(dberr.CodeInternalError, err, "index maintenance")
		}
	}
	metrics.DocumentsTotal.WithLabelValues(dbName, c.Name).Set(float64(atomic.AddInt64(&c.count, -1)))
	c.topic.Publish(&changefeed.Event{Type: changefeed.EventDelete, Database: dbName, Collection: c.Name, Key: key, Old: &old})
	return nil
}

// DeleteBatch deletes multiple keys, tolerating already-missing keys.
func (c *Collection) DeleteBatch(dbName string, keys []string) (int, error) {
	n := 0
	for _, key := range keys {
		if err := c.Delete(dbName, key); err != nil {
			if dberr.CodeOf(err) == dberr.CodeDocumentNotFound {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// RebuildAllIndexes repopulates every bound index from the current
// document set by calling OnInsert for each stored document (spec §4.4
// rebuild_all_indexes). Existing index entries are not cleared first.
func (c *Collection) RebuildAllIndexes() error {
	indexes := c.Indexes()
	return c.Scan(0, func(key string, doc value.Value) bool {
		for _, ix := range indexes {
			_ = ix.OnInsert(key, doc)
		}
		return true
	})
}

func encodeDoc(v value.Value) ([]byte, error) {
	return marshalValue(v)
}

func decodeDoc(raw []byte) (value.Value, error) {
	return unmarshalValue(raw)
}
