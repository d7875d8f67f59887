/*
Package kv implements SoliDB's L0 key-value engine: an ordered
key->bytes store with one column family (a bbolt bucket) per
collection plus system families for metadata, atomic write batches,
and snapshot reads. Higher layers (document store, indexes, WAL
replay, transaction commit) never touch bbolt directly — they go
through Engine so the storage backend can be swapped without
disturbing L1+.
*/
package kv

import (
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// Family is a column family (bucket) name.
type Family string

// System families present in every database file.
const (
	FamilyMeta    Family = "_meta"
	FamilySystem  Family = "_system"
)

// Engine is the ordered key/value store backing one database file.
type Engine struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at <dataDir>/<name>.db.
func Open(dataDir, name string) (*Engine, error) {
	path := filepath.Join(dataDir, name+".db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	e := &Engine{db: db}
	if err := e.EnsureFamily(FamilyMeta); err != nil {
		db.Close()
		return nil, err
	}
	if err := e.EnsureFamily(FamilySystem); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// Close closes the underlying file.
func (e *Engine) Close() error { return e.db.Close() }

// EnsureFamily creates the column family if it does not already exist.
func (e *Engine) EnsureFamily(f Family) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(f))
		return err
	})
}

// DropFamily deletes a column family and all of its keys.
func (e *Engine) DropFamily(f Family) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(f))
	})
}

// Get performs a point read, returning (nil, nil) on a missing key.
func (e *Engine) Get(f Family, key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(f))
		if b == nil {
			return fmt.Errorf("kv: family %s does not exist", f)
		}
		v := b.Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Put writes a single key.
func (e *Engine) Put(f Family, key, value []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(f))
		if b == nil {
			return fmt.Errorf("kv: family %s does not exist", f)
		}
		return b.Put(key, value)
	})
}

// Delete removes a single key. Deleting a missing key is not an error.
func (e *Engine) Delete(f Family, key []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(f))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// Write is a single write operation inside a WriteBatch: a Put when
// Value is non-nil, a Delete when Value is nil.
type Write struct {
	Family Family
	Key    []byte
	Value  []byte
}

// WriteBatch atomically applies a set of writes spanning one or more
// families in a single bbolt transaction, giving callers (the
// transaction manager's commit path, the document store's insert_batch)
// multi-key atomicity.
func (e *Engine) WriteBatch(writes []Write) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		for _, w := range writes {
			b := tx.Bucket([]byte(w.Family))
			if b == nil {
				nb, err := tx.CreateBucketIfNotExists([]byte(w.Family))
				if err != nil {
					return err
				}
				b = nb
			}
			if w.Value == nil {
				if err := b.Delete(w.Key); err != nil {
					return err
				}
				continue
			}
			if err := b.Put(w.Key, w.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan iterates keys with the given prefix in sorted order, stopping
// early if fn returns false. limit <= 0 means unbounded.
func (e *Engine) Scan(f Family, prefix []byte, limit int, fn func(key, value []byte) bool) error {
	return e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(f))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		n := 0
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if !fn(k, v) {
				return nil
			}
			n++
			if limit > 0 && n >= limit {
				return nil
			}
		}
		return nil
	})
}

// Snapshot returns a point-in-time read-only view. Callers must call
// Release when done; holding a Snapshot open blocks writer checkpoints
// in bbolt's MVCC model, so scans should be bounded in duration.
type Snapshot struct {
	tx *bolt.Tx
}

func (e *Engine) Snapshot() (*Snapshot, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &Snapshot{tx: tx}, nil
}

func (s *Snapshot) Get(f Family, key []byte) []byte {
	b := s.tx.Bucket([]byte(f))
	if b == nil {
		return nil
	}
	v := b.Get(key)
	if v == nil {
		return nil
	}
	return append([]byte(nil), v...)
}

func (s *Snapshot) Scan(f Family, prefix []byte, fn func(key, value []byte) bool) {
	b := s.tx.Bucket([]byte(f))
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

func (s *Snapshot) Release() error { return s.tx.Rollback() }

// Families lists every column family currently present.
func (e *Engine) Families() ([]Family, error) {
	var out []Family
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, Family(name))
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

// Count returns the number of keys in a family.
func (e *Engine) Count(f Family) (int, error) {
	n := 0
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(f))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
