/*
Package driver implements SoliDB's binary framed driver protocol
(spec §6.1): a length-prefixed command/response loop consumed by
language drivers that want a faster path than the HTTP/JSON surface.

Connection handshake: the server writes a 14-byte magic header once
the TCP connection is accepted; the client must read and verify it
before entering the command loop. Every message thereafter is framed
as a 4-byte big-endian length followed by that many bytes of payload.
Payloads are encoded with protowire's low-level varint/tag primitives
rather than full generated protobuf messages, so the command/response
tagged unions stay hand-rolled and self-describing the way spec §6.1
sketches them, while reusing the same wire encoding semantics callers
familiar with protobuf already expect (unknown fields are skippable).
*/
package driver

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/solidb/solidb/pkg/dberr"
)

// Magic is written by the server immediately after accepting a
// connection and must be echoed back verified (not retransmitted) by
// the client before any command frame is sent.
const Magic = "SOLIDB-DRV-01"

// magicLen is the handshake's fixed 14-byte width (spec §6.1).
const magicLen = 14

func init() {
	if len(Magic) != magicLen-1 {
		panic("driver: Magic must be 13 bytes to pad to the spec's 14-byte handshake")
	}
}

// magicFrame is the literal 14 bytes written/expected on the wire:
// Magic padded with a trailing newline.
func magicFrame() []byte {
	return append([]byte(Magic), '\n')
}

// writeHandshake sends the server's magic header.
func writeHandshake(w io.Writer) error {
	_, err := w.Write(magicFrame())
	return err
}

// readHandshake consumes and verifies the client's view of the magic
// header, returning a ProtocolError DriverError if it does not match.
func readHandshake(r io.Reader) error {
	buf := make([]byte, magicLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return dberr.Wrap(dberr.CodeBadRequest, err, "read driver handshake")
	}
	if string(buf) != string(magicFrame()) {
		return dberr.New(dberr.CodeBadRequest, "driver handshake mismatch")
	}
	return nil
}

// defaultMaxFrameSize bounds a single frame's payload; frames exceeding
// it are rejected with MessageTooLarge (spec §6.1) rather than read into
// memory. A positive maxFrameSize passed to New overrides it for that
// Server.
const defaultMaxFrameSize = 4 << 20

// writeFrame writes a length-prefixed payload.
func writeFrame(w *bufio.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

// readFrame reads one length-prefixed payload, rejecting frames over
// maxSize.
func readFrame(r *bufio.Reader, maxSize int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if maxSize > 0 && int(n) > maxSize {
		return nil, errMessageTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
