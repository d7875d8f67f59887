package kv_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/kv"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *kv.Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := kv.Open(dir, "test")
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestPutGetDelete(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.EnsureFamily("users"))

	require.NoError(t, e.Put("users", []byte("a"), []byte("1")))
	v, err := e.Get("users", []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, e.Delete("users", []byte("a")))
	v, err = e.Get("users", []byte("a"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestWriteBatchAtomic(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.EnsureFamily("users"))

	err := e.WriteBatch([]kv.Write{
		{Family: "users", Key: []byte("a"), Value: []byte("1")},
		{Family: "users", Key: []byte("b"), Value: []byte("2")},
	})
	require.NoError(t, err)

	va, _ := e.Get("users", []byte("a"))
	vb, _ := e.Get("users", []byte("b"))
	require.Equal(t, []byte("1"), va)
	require.Equal(t, []byte("2"), vb)
}

func TestScanPrefixOrderedWithLimit(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.EnsureFamily("users"))

	for _, k := range []string{"d:a", "d:b", "d:c", "x:z"} {
		require.NoError(t, e.Put("users", []byte(k), []byte(k)))
	}

	var keys []string
	err := e.Scan("users", []byte("d:"), 2, func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"d:a", "d:b"}, keys)
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	e := openTestEngine(t)
	require.NoError(t, e.EnsureFamily("users"))
	require.NoError(t, e.Put("users", []byte("a"), []byte("1")))

	snap, err := e.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, e.Put("users", []byte("a"), []byte("2")))

	require.Equal(t, []byte("1"), snap.Get("users", []byte("a")))
	v, _ := e.Get("users", []byte("a"))
	require.Equal(t, []byte("2"), v)
}
