package driver_test

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/driver"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

// dialDriver connects to addr, performs the handshake, and returns a
// ready-to-use buffered connection.
func dialDriver(t *testing.T, addr string) (net.Conn, *bufio.Reader, *bufio.Writer) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, driver.ReadHandshakeFromClient(conn))
	return conn, bufio.NewReader(conn), bufio.NewWriter(conn)
}

func sendCommand(t *testing.T, r *bufio.Reader, w *bufio.Writer, cmd *driver.Command) *driver.Response {
	t.Helper()
	payload := driver.EncodeCommand(cmd)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	_, err := w.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	_, err = io.ReadFull(r, lenBuf[:])
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(lenBuf[:])
	respBuf := make([]byte, n)
	_, err = io.ReadFull(r, respBuf)
	require.NoError(t, err)

	resp, err := driver.DecodeResponse(respBuf)
	require.NoError(t, err)
	return resp
}

func startServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cat := document.NewCatalog(dir)
	_, err := cat.CreateDatabase("d1")
	require.NoError(t, err)
	db, err := cat.Database("d1")
	require.NoError(t, err)
	_, err = db.CreateCollection("items", document.TypeDocument)
	require.NoError(t, err)

	mgr, err := txn.Open(cat, dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	srv := driver.New(cat, mgr, exec.NewViewRegistry(), 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	go func() { _ = srv.Serve(addr) }()
	t.Cleanup(func() { _ = srv.Close() })

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr
}

func TestServerHandshakeAndPing(t *testing.T) {
	addr := startServer(t)
	_, r, w := dialDriver(t, addr)

	resp := sendCommand(t, r, w, &driver.Command{Kind: driver.KindPing})
	require.True(t, resp.Ok)
}

func TestServerSendsMagicHandshake(t *testing.T) {
	addr := startServer(t)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 14)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, driver.Magic+"\n", string(buf))
}

func TestServerInsertAndGetOverConnection(t *testing.T) {
	addr := startServer(t)
	_, r, w := dialDriver(t, addr)

	doc := value.NewObject().Set("_key", value.String("a")).Set("n", value.Int(1)).Build()
	insertResp := sendCommand(t, r, w, &driver.Command{
		Kind: driver.KindDocInsert, Database: "d1", Collection: "items", Doc: doc,
	})
	require.True(t, insertResp.Ok)

	getResp := sendCommand(t, r, w, &driver.Command{
		Kind: driver.KindDocGet, Database: "d1", Collection: "items", Key: "a",
	})
	require.True(t, getResp.Ok)
	n, ok := getResp.Data.Field("n")
	require.True(t, ok)
	require.EqualValues(t, 1, n.AsInt())
}

func TestServerOversizedFrameReportsMessageTooLarge(t *testing.T) {
	dir := t.TempDir()
	cat := document.NewCatalog(dir)
	mgr, err := txn.Open(cat, dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	srv := driver.New(cat, mgr, exec.NewViewRegistry(), 16)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	go func() { _ = srv.Serve(addr) }()
	t.Cleanup(func() { _ = srv.Close() })

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	_, r, w := dialDriver(t, addr)
	big := &driver.Command{Kind: driver.KindDocInsert, Database: "d1", Collection: "items",
		Doc: value.NewObject().Set("_key", value.String("a")).Set("blob", value.String(
			"0123456789012345678901234567890123456789")).Build()}
	resp := sendCommand(t, r, w, big)
	require.False(t, resp.Ok)
	require.Equal(t, driver.ErrMessageTooLarge, resp.ErrorKind)
}
