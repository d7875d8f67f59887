package index

import (
	"fmt"
	"sort"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/kv"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
)

// entrySep separates the encoded field-value prefix from the document
// key suffix inside one persistent index row, so that distinct
// documents sharing a field value each get their own row.
const entrySep = 0x1f

// Persistent implements a single- or compound-field index over a
// collection, backed by one kv.Family per index so lookups and range
// scans reuse kv.Engine's ordered Scan (spec §4.4 persistent indexes).
type Persistent struct {
	name     string
	fields   []string
	unique   bool
	sparse   bool
	engine   *kv.Engine
	family   kv.Family
}

// NewPersistent creates a persistent index over one or more fields of
// a collection's documents. unique rejects documents whose field
// tuple already exists; sparse skips documents missing any of the
// indexed fields instead of indexing them under a null entry.
func NewPersistent(engine *kv.Engine, indexName string, fields []string, unique, sparse bool) (*Persistent, error) {
	fam := kv.Family("ix:" + indexName)
	if err := engine.EnsureFamily(fam); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "create index family %s", indexName)
	}
	return &Persistent{name: indexName, fields: fields, unique: unique, sparse: sparse, engine: engine, family: fam}, nil
}

func (p *Persistent) Name() string { return p.name }

// Fields returns the indexed field names, in index-definition order, so
// a query planner can match a FILTER comparison against a usable index
// without reaching into index internals.
func (p *Persistent) Fields() []string { return append([]string(nil), p.fields...) }

func (p *Persistent) fieldTuple(doc value.Value) ([]value.Value, bool) {
	tuple := make([]value.Value, len(p.fields))
	for i, f := range p.fields {
		v, ok := doc.Field(f)
		if !ok {
			if p.sparse {
				return nil, false
			}
			v = value.Null()
		}
		tuple[i] = v
	}
	return tuple, true
}

func (p *Persistent) rowKey(tuple []value.Value, docKey string) []byte {
	prefix := CompositeKey(tuple)
	row := make([]byte, 0, len(prefix)+1+len(docKey))
	row = append(row, prefix...)
	row = append(row, entrySep)
	row = append(row, []byte(docKey)...)
	return row
}

func (p *Persistent) CheckInsert(key string, doc value.Value) error {
	if !p.unique {
		return nil
	}
	tuple, ok := p.fieldTuple(doc)
	if !ok {
		return nil
	}
	prefix := CompositeKey(tuple)
	var conflict bool
	_ = p.engine.Scan(p.family, prefix, 1, func(k, _ []byte) bool {
		conflict = true
		return false
	})
	if conflict {
		return dberr.New(dberr.CodeTransactionConflict, "unique index %s violated", p.name)
	}
	return nil
}

func (p *Persistent) OnInsert(key string, doc value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("persistent", "insert").Inc()
	return p.put(key, doc)
}

func (p *Persistent) put(key string, doc value.Value) error {
	tuple, ok := p.fieldTuple(doc)
	if !ok {
		return nil
	}
	return p.engine.Put(p.family, p.rowKey(tuple, key), []byte(key))
}

func (p *Persistent) OnUpdate(key string, old, updated value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("persistent", "update").Inc()
	if oldTuple, ok := p.fieldTuple(old); ok {
		_ = p.engine.Delete(p.family, p.rowKey(oldTuple, key))
	}
	return p.put(key, updated)
}

func (p *Persistent) OnDelete(key string, old value.Value) error {
	metrics.IndexOpsTotal.WithLabelValues("persistent", "delete").Inc()
	tuple, ok := p.fieldTuple(old)
	if !ok {
		return nil
	}
	return p.engine.Delete(p.family, p.rowKey(tuple, key))
}

// Equals returns every document key whose indexed tuple equals values.
func (p *Persistent) Equals(values []value.Value) ([]string, error) {
	prefix := CompositeKey(values)
	var keys []string
	err := p.engine.Scan(p.family, prefix, 0, func(k, v []byte) bool {
		keys = append(keys, string(v))
		return true
	})
	return keys, err
}

// Range returns document keys whose single-field value lies between
// low and high, each bound inclusive or exclusive per includeLow and
// includeHigh; only valid for single-field indexes.
func (p *Persistent) Range(low, high value.Value, includeLow, includeHigh bool) ([]string, error) {
	if len(p.fields) != 1 {
		return nil, fmt.Errorf("range scan requires a single-field index")
	}
	lowB := EncodeSortable(low)
	highB := EncodeSortable(high)
	var keys []string
	err := p.engine.Scan(p.family, nil, 0, func(k, v []byte) bool {
		sepAt := lastIndexByte(k, entrySep)
		if sepAt < 0 {
			return true
		}
		fieldPart := k[:sepAt]
		cmpLow := compareBytes(fieldPart, lowB)
		cmpHigh := compareBytes(fieldPart, highB)
		if (cmpLow > 0 || (includeLow && cmpLow == 0)) && (cmpHigh < 0 || (includeHigh && cmpHigh == 0)) {
			keys = append(keys, string(v))
		}
		return true
	})
	sort.Strings(keys)
	return keys, err
}

func lastIndexByte(b []byte, sep byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == sep {
			return i
		}
	}
	return -1
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
