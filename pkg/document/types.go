package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solidb/solidb/pkg/value"
)

// CollectionType is one of the four collection kinds spec §3 defines.
type CollectionType string

const (
	TypeDocument   CollectionType = "document"
	TypeEdge       CollectionType = "edge"
	TypeTimeseries CollectionType = "timeseries"
	TypeColumnar   CollectionType = "columnar"
)

// KeyField is the default document field used as the document key.
const KeyField = "_key"
const IDField = "_id"
const FromField = "_from"
const ToField = "_to"

// GenerateKey produces a time-ordered, globally unique key when the
// caller does not supply one: a 13-hex-digit millisecond timestamp
// prefix, a hyphen, and a version-7 UUID, which increases monotonically
// within the process, so that keys generated in the same millisecond
// still sort in generation order (useful for range scans and the
// time-ordered "_key" default shard key).
func GenerateKey() string {
	ts := time.Now().UnixMilli()
	id := uuid.Must(uuid.NewV7())
	return fmt.Sprintf("%013x-%s", ts, id.String())
}

// BuildID derives "_id" from a collection name and key.
func BuildID(collection, key string) string {
	return collection + "/" + key
}

// SplitID splits an "_id" of the form "<collection>/<key>" into parts.
func SplitID(id string) (collection, key string, ok bool) {
	i := strings.IndexByte(id, '/')
	if i < 0 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// PrepareInsert assigns _key/_id on a document value if absent, and
// validates edge-collection invariants. It returns the finalized
// document value and its key.
func PrepareInsert(ctype CollectionType, collName string, doc value.Value) (value.Value, string, error) {
	if doc.Kind() != value.KindObject {
		return value.Null(), "", fmt.Errorf("document must be a JSON object")
	}

	b := value.NewObject()
	for _, k := range doc.Keys() {
		f, _ := doc.Field(k)
		b.Set(k, f)
	}

	key := ""
	if f, ok := doc.Field(KeyField); ok && f.Kind() == value.KindString {
		key = f.AsString()
	} else {
		key = GenerateKey()
		b.Set(KeyField, value.String(key))
	}
	b.Set(IDField, value.String(BuildID(collName, key)))

	if ctype == TypeEdge {
		from, fromOK := doc.Field(FromField)
		to, toOK := doc.Field(ToField)
		if !fromOK || from.Kind() != value.KindString || !validRef(from.AsString()) {
			return value.Null(), "", fmt.Errorf("edge document missing valid _from")
		}
		if !toOK || to.Kind() != value.KindString || !validRef(to.AsString()) {
			return value.Null(), "", fmt.Errorf("edge document missing valid _to")
		}
	}

	return b.Build(), key, nil
}

func validRef(ref string) bool {
	_, _, ok := SplitID(ref)
	return ok
}

// IndexMaintainer is the hook a Collection uses to keep every bound
// index consistent with its documents (spec §4.4: "update every
// index" on insert/update/delete). Concrete index kinds (persistent,
// fulltext, geo, ttl, vector) implement this without document needing
// to import the index package, avoiding an import cycle.
type IndexMaintainer interface {
	Name() string
	// CheckInsert validates a would-be insertion (e.g. a unique index
	// rejecting a duplicate key tuple) before any write happens.
	CheckInsert(key string, doc value.Value) error
	OnInsert(key string, doc value.Value) error
	OnUpdate(key string, old, updated value.Value) error
	OnDelete(key string, old value.Value) error
}

// MergeShallow applies a top-level shallow merge of patch onto base,
// used by UPDATE without REPLACE (spec §4.4).
func MergeShallow(base, patch value.Value) value.Value {
	b := value.NewObject()
	for _, k := range base.Keys() {
		f, _ := base.Field(k)
		b.Set(k, f)
	}
	for _, k := range patch.Keys() {
		f, _ := patch.Field(k)
		b.Set(k, f)
	}
	return b.Build()
}
