package driver_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/driver"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func setupDispatcher(t *testing.T) *driver.Dispatcher {
	t.Helper()
	dir := t.TempDir()
	cat := document.NewCatalog(dir)
	db, err := cat.CreateDatabase("d1")
	require.NoError(t, err)
	_, err = db.CreateCollection("items", document.TypeDocument)
	require.NoError(t, err)

	mgr, err := txn.Open(cat, dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return driver.NewDispatcher(cat, mgr, exec.NewViewRegistry())
}

func TestDispatchPing(t *testing.T) {
	d := setupDispatcher(t)
	resp := d.Dispatch(&driver.Command{Kind: driver.KindPing})
	require.True(t, resp.Ok)
}

func TestDispatchDocInsertAndGet(t *testing.T) {
	d := setupDispatcher(t)
	doc := value.NewObject().Set("_key", value.String("a")).Set("n", value.Int(1)).Build()
	insertResp := d.Dispatch(&driver.Command{Kind: driver.KindDocInsert, Database: "d1", Collection: "items", Doc: doc})
	require.True(t, insertResp.Ok)

	getResp := d.Dispatch(&driver.Command{Kind: driver.KindDocGet, Database: "d1", Collection: "items", Key: "a"})
	require.True(t, getResp.Ok)
	n, ok := getResp.Data.Field("n")
	require.True(t, ok)
	require.EqualValues(t, 1, n.AsInt())
}

func TestDispatchUnknownCollectionIsDatabaseError(t *testing.T) {
	d := setupDispatcher(t)
	resp := d.Dispatch(&driver.Command{Kind: driver.KindDocGet, Database: "d1", Collection: "missing", Key: "a"})
	require.False(t, resp.Ok)
	require.Equal(t, driver.ErrDatabaseError, resp.ErrorKind)
}

func TestDispatchTransactionCommandThreadsTx(t *testing.T) {
	d := setupDispatcher(t)
	begin := d.Dispatch(&driver.Command{Kind: driver.KindTransactionBegin})
	require.True(t, begin.Ok)

	doc := value.NewObject().Set("_key", value.String("b")).Build()
	wrapped := d.Dispatch(&driver.Command{
		Kind: driver.KindTransactionCommand,
		TxID: begin.TxID,
		Inner: &driver.Command{
			Kind: driver.KindDocInsert, Database: "d1", Collection: "items", Doc: doc,
		},
	})
	require.True(t, wrapped.Ok)

	// Not yet visible outside the transaction.
	getResp := d.Dispatch(&driver.Command{Kind: driver.KindDocGet, Database: "d1", Collection: "items", Key: "b"})
	require.False(t, getResp.Ok)

	commit := d.Dispatch(&driver.Command{Kind: driver.KindTransactionCommit, TxID: begin.TxID})
	require.True(t, commit.Ok)

	getResp = d.Dispatch(&driver.Command{Kind: driver.KindDocGet, Database: "d1", Collection: "items", Key: "b"})
	require.True(t, getResp.Ok)
}

func TestDispatchQuery(t *testing.T) {
	d := setupDispatcher(t)
	doc := value.NewObject().Set("_key", value.String("c")).Set("name", value.String("zed")).Build()
	require.True(t, d.Dispatch(&driver.Command{Kind: driver.KindDocInsert, Database: "d1", Collection: "items", Doc: doc}).Ok)

	resp := d.Dispatch(&driver.Command{Kind: driver.KindQuery, Database: "d1", SDBQL: `FOR i IN items RETURN i.name`})
	require.True(t, resp.Ok)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "zed", resp.Data.AsArray()[0].AsString())
}

func TestDispatchBatch(t *testing.T) {
	d := setupDispatcher(t)
	resp := d.Dispatch(&driver.Command{
		Kind: driver.KindBatch,
		Batch: []*driver.Command{
			{Kind: driver.KindPing},
			{Kind: driver.KindDocGet, Database: "d1", Collection: "missing", Key: "x"},
		},
	})
	require.True(t, resp.Ok)
	require.Len(t, resp.Responses, 2)
	require.True(t, resp.Responses[0].Ok)
	require.False(t, resp.Responses[1].Ok)
}

func TestDispatchDelegatedCommandIsInvalid(t *testing.T) {
	d := setupDispatcher(t)
	resp := d.Dispatch(&driver.Command{Kind: driver.KindDelegated})
	require.False(t, resp.Ok)
	require.Equal(t, driver.ErrInvalidCommand, resp.ErrorKind)
}
