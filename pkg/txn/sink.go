package txn

import "github.com/solidb/solidb/pkg/value"

// Sink adapts a Manager/Transaction pair to pkg/query/exec.Sink, so a
// query's mutation clauses stage their writes inside an explicit
// transaction instead of applying them directly.
type Sink struct {
	Manager *Manager
	Tx      *Transaction
}

// NewSink returns a Sink bound to tx, staging every mutation through
// mgr rather than committing it immediately.
func NewSink(mgr *Manager, tx *Transaction) *Sink {
	return &Sink{Manager: mgr, Tx: tx}
}

func (s *Sink) Insert(db, coll string, doc value.Value) (value.Value, error) {
	return s.Manager.StageInsert(s.Tx, db, coll, doc)
}

func (s *Sink) Update(db, coll, key string, patch value.Value, replace bool) (value.Value, error) {
	return s.Manager.StageUpdate(s.Tx, db, coll, key, patch, replace)
}

func (s *Sink) Remove(db, coll, key string) error {
	return s.Manager.StageDelete(s.Tx, db, coll, key)
}
