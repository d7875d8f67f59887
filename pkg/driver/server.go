package driver

import (
	"bufio"
	"errors"
	"io"
	"net"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/txn"
)

// Server listens for raw TCP connections and speaks the binary driver
// protocol on each (spec §6.1). One Dispatcher is shared by every
// connection; the per-connection state is just the socket and its
// framing buffers.
type Server struct {
	listener     net.Listener
	dispatch     *Dispatcher
	maxFrameSize int
}

// New builds a Server wired to catalog/txMgr/views, the same components
// pkg/httpapi.Server is built from (spec §6: "thin adapters over a single
// embedded engine"). Index managers are resolved per-database inside the
// dispatcher since index.Manager is scoped to one database's engine.
// maxFrameSize <= 0 uses the default.
func New(catalog *document.Catalog, txMgr *txn.Manager, views *exec.ViewRegistry, maxFrameSize int) *Server {
	if maxFrameSize <= 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &Server{
		dispatch:     NewDispatcher(catalog, txMgr, views),
		maxFrameSize: maxFrameSize,
	}
}

// Serve accepts connections on addr until the listener is closed.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	logger := log.WithComponent("driver")
	defer conn.Close()

	if err := writeHandshake(conn); err != nil {
		logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("handshake write failed")
		return
	}

	metrics.DriverConnectionsActive.Inc()
	defer metrics.DriverConnectionsActive.Dec()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		payload, err := readFrame(r, s.maxFrameSize)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				s.writeError(w, ErrMessageTooLarge, "frame exceeds maximum message size")
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Warn().Err(err).Msg("connection read failed")
			}
			return
		}

		cmd, err := DecodeCommand(payload)
		if err != nil {
			s.writeError(w, ErrProtocolError, "malformed command frame")
			continue
		}

		resp := s.dispatch.Dispatch(cmd)
		if err := writeFrame(w, EncodeResponse(resp)); err != nil {
			logger.Warn().Err(err).Msg("connection write failed")
			return
		}
	}
}

func (s *Server) writeError(w *bufio.Writer, kind DriverErrorKind, format string, args ...any) {
	resp := errResponse(kind, format, args...)
	_ = writeFrame(w, EncodeResponse(resp))
}

// ReadHandshakeFromClient is exposed for client implementations (and
// tests) that want to perform the driver's handshake side without
// depending on Server.
func ReadHandshakeFromClient(r io.Reader) error { return readHandshake(r) }
