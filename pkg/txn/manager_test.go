package txn_test

import (
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func obj(fields map[string]value.Value) value.Value {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return value.Object(keys, fields)
}

func setup(t *testing.T) (*document.Catalog, *txn.Manager) {
	t.Helper()
	dir := t.TempDir()
	cat := document.NewCatalog(dir)
	db, err := cat.CreateDatabase("d1")
	require.NoError(t, err)
	_, err = db.CreateCollection("items", document.TypeDocument)
	require.NoError(t, err)

	mgr, err := txn.Open(cat, dir, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return cat, mgr
}

func TestCommitAppliesStagedInsert(t *testing.T) {
	cat, mgr := setup(t)

	tx, err := mgr.Begin(txn.ReadCommitted)
	require.NoError(t, err)
	_, err = mgr.StageInsert(tx, "d1", "items", obj(map[string]value.Value{"_key": value.String("a"), "v": value.Int(1)}))
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(tx))

	db, _ := cat.Database("d1")
	coll, _ := db.Collection("items")
	_, found, err := coll.Get("a")
	require.NoError(t, err)
	require.True(t, found)
}

func TestAbortDoesNotApply(t *testing.T) {
	cat, mgr := setup(t)

	tx, err := mgr.Begin(txn.ReadCommitted)
	require.NoError(t, err)
	_, err = mgr.StageInsert(tx, "d1", "items", obj(map[string]value.Value{"_key": value.String("a")}))
	require.NoError(t, err)
	require.NoError(t, mgr.Abort(tx))

	db, _ := cat.Database("d1")
	coll, _ := db.Collection("items")
	_, found, err := coll.Get("a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDuplicateInsertInSameTxConflicts(t *testing.T) {
	_, mgr := setup(t)

	tx, err := mgr.Begin(txn.ReadCommitted)
	require.NoError(t, err)
	_, err = mgr.StageInsert(tx, "d1", "items", obj(map[string]value.Value{"_key": value.String("a")}))
	require.NoError(t, err)
	_, err = mgr.StageInsert(tx, "d1", "items", obj(map[string]value.Value{"_key": value.String("a")}))
	require.Error(t, err)
}

func TestUpdateAfterDeleteInSameTxConflicts(t *testing.T) {
	cat, mgr := setup(t)
	db, _ := cat.Database("d1")
	coll, _ := db.Collection("items")
	_, err := coll.Insert("d1", obj(map[string]value.Value{"_key": value.String("a")}))
	require.NoError(t, err)

	tx, err := mgr.Begin(txn.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, mgr.StageDelete(tx, "d1", "items", "a"))
	_, err = mgr.StageUpdate(tx, "d1", "items", "a", obj(map[string]value.Value{"v": value.Int(1)}), false)
	require.Error(t, err)
}
