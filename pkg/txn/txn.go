package txn

import (
	"sync"
	"time"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
	"github.com/solidb/solidb/pkg/wal"
)

// IsolationLevel is the read isolation a transaction was begun with
// (spec §4.5: "snapshot reads for the duration of the transaction").
type IsolationLevel string

const (
	ReadCommitted IsolationLevel = "ReadCommitted"
	Snapshot      IsolationLevel = "Snapshot"
)

// State is a transaction's position in the Active -> Preparing ->
// Committed|Aborted state machine (spec §4.5).
type State string

const (
	StateActive    State = "Active"
	StatePreparing State = "Preparing"
	StateCommitted State = "Committed"
	StateAborted   State = "Aborted"
)

// Transaction is one logical unit of staged work.
type Transaction struct {
	ID        uint64
	Isolation IsolationLevel
	StartedAt time.Time

	mu       sync.Mutex
	state    State
	ops      []wal.Operation
	lastOp   map[string]wal.OpKind // "db/coll/key" -> most recent staged op kind
}

// State returns the transaction's current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func keyOf(db, coll, key string) string { return db + "/" + coll + "/" + key }

// stage validates the conflict rules (spec §4.5 validation) and
// appends op to the transaction's staged log if it passes.
func (t *Transaction) stage(op wal.Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		return dberr.New(dberr.CodeTransactionConflict, "transaction %d is not active", t.ID)
	}

	k := keyOf(op.Database, op.Collection, op.Key)
	prior, seen := t.lastOp[k]
	switch {
	case op.Kind == wal.OpInsert && seen:
		metrics.TransactionConflictsTotal.Inc()
		return dberr.New(dberr.CodeTransactionConflict, "duplicate insert of %s in transaction %d", k, t.ID)
	case op.Kind == wal.OpUpdate && seen && prior == wal.OpDelete:
		metrics.TransactionConflictsTotal.Inc()
		return dberr.New(dberr.CodeTransactionConflict, "update after delete of %s in transaction %d", k, t.ID)
	}

	if t.lastOp == nil {
		t.lastOp = make(map[string]wal.OpKind)
	}
	t.lastOp[k] = op.Kind
	t.ops = append(t.ops, op)
	return nil
}
