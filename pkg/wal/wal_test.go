package wal_test

import (
	"path/filepath"
	"testing"

	"github.com/solidb/solidb/pkg/value"
	"github.com/solidb/solidb/pkg/wal"
	"github.com/stretchr/testify/require"
)

func TestReplayOnlyReturnsCommittedTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := wal.Open(path)
	require.NoError(t, err)
	defer w.Close()

	// tx 1: committed insert
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordBegin, TxID: 1, Timestamp: 1}))
	v := value.Int(1)
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordOperation, TxID: 1, Operation: &wal.Operation{
		Kind: wal.OpInsert, Database: "d", Collection: "c", Key: "a", NewData: &v,
	}}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordCommit, TxID: 1, Timestamp: 2}))

	// tx 2: begun, then aborted — must leave no trace
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordBegin, TxID: 2, Timestamp: 3}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordOperation, TxID: 2, Operation: &wal.Operation{
		Kind: wal.OpInsert, Database: "d", Collection: "c", Key: "x", NewData: &v,
	}}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordAbort, TxID: 2, Timestamp: 4}))

	// tx 3: begun, never terminated (crash)
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordBegin, TxID: 3, Timestamp: 5}))

	committed, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, committed, 1)
	require.Equal(t, uint64(1), committed[0].TxID)
	require.Len(t, committed[0].Ops, 1)
	require.Equal(t, "a", committed[0].Ops[0].Key)
}

func TestTruncateKeepsOnlyPostCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := wal.Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(wal.Record{Type: wal.RecordBegin, TxID: 1, Timestamp: 1}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordCommit, TxID: 1, Timestamp: 2}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordCheckpoint, Timestamp: 3}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordBegin, TxID: 2, Timestamp: 4}))
	require.NoError(t, w.Append(wal.Record{Type: wal.RecordCommit, TxID: 2, Timestamp: 5}))

	require.NoError(t, w.Truncate())

	records, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // Checkpoint, Begin(2), Commit(2)
	require.Equal(t, wal.RecordCheckpoint, records[0].Type)
}
