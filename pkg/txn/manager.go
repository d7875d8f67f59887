package txn

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/value"
	"github.com/solidb/solidb/pkg/wal"
)

// DefaultTimeout is the default transaction idle timeout (spec §4.5:
// "5 minute default transaction timeout").
const DefaultTimeout = 5 * time.Minute

// Manager owns the WAL, the active transaction table, and drives
// commit/abort/recovery against a document.Catalog.
type Manager struct {
	catalog *document.Catalog
	log     *wal.WAL
	timeout time.Duration

	mu     sync.Mutex
	active map[uint64]*Transaction
	nextID uint64

	stopSweep chan struct{}
}

// Open opens the WAL under dataDir and returns a ready Manager. Call
// Recover before serving traffic to replay any committed-but-unapplied
// transactions from a prior crash.
func Open(catalog *document.Catalog, dataDir string, timeout time.Duration) (*Manager, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w, err := wal.Open(filepath.Join(dataDir, "txn.wal"))
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "open transaction log")
	}
	m := &Manager{
		catalog:   catalog,
		log:       w,
		timeout:   timeout,
		active:    make(map[uint64]*Transaction),
		stopSweep: make(chan struct{}),
	}
	go m.sweepLoop()
	return m, nil
}

// Close stops the timeout sweeper and closes the WAL.
func (m *Manager) Close() error {
	close(m.stopSweep)
	return m.log.Close()
}

// Recover replays every committed transaction found in the WAL back
// into the document catalog (spec §4.5 recovery) and then checkpoints
// the log so future restarts do not redo this work.
func (m *Manager) Recover() error {
	committed, err := m.log.Replay()
	if err != nil {
		return dberr.Wrap(dberr.CodeInternalError, err, "replay transaction log")
	}
	l := log.WithComponent("txn")
	for _, ctx := range committed {
		l.Info().Uint64("tx_id", ctx.TxID).Int("ops", len(ctx.Ops)).Msg("replaying committed transaction")
		for _, op := range ctx.Ops {
			if err := m.applyOp(op); err != nil {
				l.Error().Err(err).Uint64("tx_id", ctx.TxID).Msg("replay failed")
			}
		}
	}
	if err := m.log.Append(wal.Record{Type: wal.RecordCheckpoint, Timestamp: nowMillis()}); err != nil {
		return err
	}
	return m.log.Truncate()
}

// Begin starts a new transaction and logs its Begin record.
func (m *Manager) Begin(isolation IsolationLevel) (*Transaction, error) {
	id := atomic.AddUint64(&m.nextID, 1)
	tx := &Transaction{ID: id, Isolation: isolation, StartedAt: time.Now(), state: StateActive}

	if err := m.log.Append(wal.Record{Type: wal.RecordBegin, TxID: id, Timestamp: nowMillis()}); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "log begin")
	}

	m.mu.Lock()
	m.active[id] = tx
	m.mu.Unlock()
	metrics.ActiveTransactions.Inc()
	return tx, nil
}

// Lookup returns the active transaction with the given id, if any.
func (m *Manager) Lookup(id uint64) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.active[id]
	return tx, ok
}

func (m *Manager) collection(db, coll string) (*document.Collection, error) {
	database, err := m.catalog.Database(db)
	if err != nil {
		return nil, err
	}
	return database.Collection(coll)
}

// StageInsert validates and logs a staged insert, returning the document
// as it will read once the transaction commits (with _key/_id assigned).
func (m *Manager) StageInsert(tx *Transaction, db, coll string, doc value.Value) (value.Value, error) {
	c, err := m.collection(db, coll)
	if err != nil {
		return value.Null(), err
	}
	finalDoc, key, err := document.PrepareInsert(c.Type, coll, doc)
	if err != nil {
		return value.Null(), dberr.Wrap(dberr.CodeInvalidDocument, err, "stage insert")
	}
	op := wal.Operation{Kind: wal.OpInsert, Database: db, Collection: coll, Key: key, NewData: &finalDoc}
	if err := tx.stage(op); err != nil {
		return value.Null(), err
	}
	if err := m.log.Append(wal.Record{Type: wal.RecordOperation, TxID: tx.ID, Timestamp: nowMillis(), Operation: &op}); err != nil {
		return value.Null(), err
	}
	return finalDoc, nil
}

// StageUpdate validates and logs a staged update, returning the document
// as it will read once the transaction commits.
func (m *Manager) StageUpdate(tx *Transaction, db, coll, key string, patch value.Value, replace bool) (value.Value, error) {
	c, err := m.collection(db, coll)
	if err != nil {
		return value.Null(), err
	}
	old, found, err := c.Get(key)
	if err != nil {
		return value.Null(), err
	}
	if !found {
		return value.Null(), dberr.New(dberr.CodeDocumentNotFound, "document %s/%s", coll, key)
	}
	merged := patch
	if !replace {
		merged = document.MergeShallow(old, patch)
	}
	op := wal.Operation{Kind: wal.OpUpdate, Database: db, Collection: coll, Key: key, NewData: &patch, OldData: &old, Merge: !replace}
	if err := tx.stage(op); err != nil {
		return value.Null(), err
	}
	if err := m.log.Append(wal.Record{Type: wal.RecordOperation, TxID: tx.ID, Timestamp: nowMillis(), Operation: &op}); err != nil {
		return value.Null(), err
	}
	return merged, nil
}

// StageDelete validates and logs a staged delete.
func (m *Manager) StageDelete(tx *Transaction, db, coll, key string) error {
	c, err := m.collection(db, coll)
	if err != nil {
		return err
	}
	old, found, err := c.Get(key)
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.CodeDocumentNotFound, "document %s/%s", coll, key)
	}
	op := wal.Operation{Kind: wal.OpDelete, Database: db, Collection: coll, Key: key, OldData: &old}
	if err := tx.stage(op); err != nil {
		return err
	}
	return m.log.Append(wal.Record{Type: wal.RecordOperation, TxID: tx.ID, Timestamp: nowMillis(), Operation: &op})
}

// Commit durably marks the transaction committed, then applies its
// staged operations to the document catalog. The Commit WAL record is
// the durability boundary: once it is fsynced, the transaction is
// considered committed even if the process crashes before applyOp
// finishes, and Recover will redo the remaining operations on restart.
func (m *Manager) Commit(tx *Transaction) error {
	tx.mu.Lock()
	if tx.state != StateActive {
		tx.mu.Unlock()
		return dberr.New(dberr.CodeTransactionConflict, "transaction %d is not active", tx.ID)
	}
	tx.state = StatePreparing
	ops := append([]wal.Operation(nil), tx.ops...)
	tx.mu.Unlock()

	if err := m.log.Append(wal.Record{Type: wal.RecordCommit, TxID: tx.ID, Timestamp: nowMillis()}); err != nil {
		return dberr.Wrap(dberr.CodeInternalError, err, "log commit")
	}

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()

	for _, op := range ops {
		if err := m.applyOp(op); err != nil {
			log.WithComponent("txn").Error().Err(err).Uint64("tx_id", tx.ID).Msg("apply after commit failed")
		}
	}

	tx.mu.Lock()
	tx.state = StateCommitted
	tx.mu.Unlock()
	metrics.TransactionsCommittedTotal.Inc()
	metrics.ActiveTransactions.Dec()
	return nil
}

// Abort discards the transaction's staged operations, which were never
// applied to the catalog (spec invariant: aborted transactions leave
// no trace).
func (m *Manager) Abort(tx *Transaction) error {
	return m.abort(tx, "explicit")
}

func (m *Manager) abort(tx *Transaction, reason string) error {
	tx.mu.Lock()
	if tx.state != StateActive {
		tx.mu.Unlock()
		return dberr.New(dberr.CodeTransactionConflict, "transaction %d is not active", tx.ID)
	}
	tx.state = StateAborted
	tx.mu.Unlock()

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()

	metrics.TransactionsAbortedTotal.WithLabelValues(reason).Inc()
	metrics.ActiveTransactions.Dec()
	return m.log.Append(wal.Record{Type: wal.RecordAbort, TxID: tx.ID, Timestamp: nowMillis()})
}

func (m *Manager) applyOp(op wal.Operation) error {
	c, err := m.collection(op.Database, op.Collection)
	if err != nil {
		return err
	}
	switch op.Kind {
	case wal.OpInsert:
		_, err := c.Insert(op.Database, *op.NewData)
		if err != nil && dberr.CodeOf(err) == dberr.CodeInvalidDocument {
			return nil // already applied (replay idempotency on duplicate key)
		}
		return err
	case wal.OpUpdate:
		_, err := c.Update(op.Database, op.Key, *op.NewData, !op.Merge)
		return err
	case wal.OpDelete:
		err := c.Delete(op.Database, op.Key)
		if err != nil && dberr.CodeOf(err) == dberr.CodeDocumentNotFound {
			return nil
		}
		return err
	}
	return nil
}

// sweepLoop aborts transactions idle longer than m.timeout (spec §4.5
// timeout handling).
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.timeout / 5)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := time.Now()
	m.mu.Lock()
	var stale []*Transaction
	for _, tx := range m.active {
		if now.Sub(tx.StartedAt) > m.timeout {
			stale = append(stale, tx)
		}
	}
	m.mu.Unlock()

	for _, tx := range stale {
		if err := m.abort(tx, "timeout"); err != nil {
			log.WithComponent("txn").Warn().Uint64("tx_id", tx.ID).Msg("timeout abort failed")
		} else {
			log.WithComponent("txn").Info().Uint64("tx_id", tx.ID).Msg("transaction timed out")
		}
	}
}

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// RunInTransaction begins a transaction, runs fn, and commits on
// success or aborts on error/panic — the embedded-scripting-style
// transactional handle used by stored procedures and driver-side
// scripted transactions.
func RunInTransaction(m *Manager, isolation IsolationLevel, fn func(tx *Transaction) error) (err error) {
	tx, err := m.Begin(isolation)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = m.Abort(tx)
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if abortErr := m.Abort(tx); abortErr != nil {
			log.WithComponent("txn").Warn().Err(abortErr).Msg("abort after error failed")
		}
		return err
	}
	return m.Commit(tx)
}
