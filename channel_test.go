/*
 * Copyright (c) 2026, Psiphon Inc.
 * All rights reserved.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package tlstransport

import (
	"bytes"
	std_errors "errors"
	"io"
	"net"
	"testing"
	"time"
)

// scriptedConn is a synthetic underlying stream for exercising the pump and
// memory channel without a TLS engine: reads are served from a script of
// chunks, writes and deadline calls are recorded.
type scriptedConn struct {
	readChunks    [][]byte
	readErr       error
	written       bytes.Buffer
	writeLimit    int
	writeErr      error
	readDeadlines int
	writeDeadline int
	closed        bool
}

func (conn *scriptedConn) Read(p []byte) (int, error) {
	if len(conn.readChunks) == 0 {
		if conn.readErr != nil {
			return 0, conn.readErr
		}
		return 0, io.EOF
	}
	chunk := conn.readChunks[0]
	n := copy(p, chunk)
	if n == len(chunk) {
		conn.readChunks = conn.readChunks[1:]
	} else {
		conn.readChunks[0] = chunk[n:]
	}
	return n, nil
}

func (conn *scriptedConn) Write(p []byte) (int, error) {
	if conn.writeErr != nil {
		return 0, conn.writeErr
	}
	n := len(p)
	if conn.writeLimit > 0 && n > conn.writeLimit {
		n = conn.writeLimit
	}
	conn.written.Write(p[:n])
	return n, nil
}

func (conn *scriptedConn) Close() error {
	conn.closed = true
	return nil
}

func (conn *scriptedConn) LocalAddr() net.Addr                { return nil }
func (conn *scriptedConn) RemoteAddr() net.Addr               { return nil }
func (conn *scriptedConn) SetDeadline(t time.Time) error      { return nil }
func (conn *scriptedConn) SetWriteDeadline(t time.Time) error { conn.writeDeadline++; return nil }
func (conn *scriptedConn) SetReadDeadline(t time.Time) error  { conn.readDeadlines++; return nil }

func noTimeout() time.Duration { return 0 }

func TestChannelReadFIFO(t *testing.T) {

	conn := &scriptedConn{
		readChunks: [][]byte{[]byte("abc"), []byte("defg")},
	}
	channel := newMemoryChannel(conn, false, noTimeout)

	read := make([]byte, 2)
	var received bytes.Buffer
	for {
		n, err := channel.Read(read)
		received.Write(read[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("channel.Read failed: %s", err)
		}
	}

	if received.String() != "abcdefg" {
		t.Errorf("unexpected read sequence: %q", received.String())
	}
}

func TestChannelFlushBeforeFill(t *testing.T) {

	// Queued outgoing ciphertext must reach the real stream before the pump
	// blocks reading it: the handshake depends on this ordering.

	conn := &scriptedConn{
		readChunks: [][]byte{[]byte("response")},
	}
	channel := newMemoryChannel(conn, false, noTimeout)

	_, err := channel.Write([]byte("request"))
	if err != nil {
		t.Fatalf("channel.Write failed: %s", err)
	}
	if conn.written.Len() != 0 {
		t.Fatalf("engine write reached the real stream before a flush")
	}

	read := make([]byte, 16)
	n, err := channel.Read(read)
	if err != nil {
		t.Fatalf("channel.Read failed: %s", err)
	}

	if conn.written.String() != "request" {
		t.Errorf("outgoing queue not flushed before read: %q", conn.written.String())
	}
	if string(read[:n]) != "response" {
		t.Errorf("unexpected read: %q", string(read[:n]))
	}
}

func TestChannelRaggedEOF(t *testing.T) {

	strictChannel := newMemoryChannel(&scriptedConn{}, true, noTimeout)
	_, err := strictChannel.Read(make([]byte, 1))
	if !std_errors.Is(err, ErrRaggedEOF) {
		t.Errorf("expected ErrRaggedEOF, got %v", err)
	}

	suppressedChannel := newMemoryChannel(&scriptedConn{}, false, noTimeout)
	_, err = suppressedChannel.Read(make([]byte, 1))
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestChannelUnderlyingErrorPropagation(t *testing.T) {

	connErr := std_errors.New("underlying conn failure")
	conn := &scriptedConn{readErr: connErr}
	channel := newMemoryChannel(conn, false, noTimeout)

	_, err := channel.Read(make([]byte, 1))
	if !std_errors.Is(err, connErr) {
		t.Errorf("underlying error not propagated unchanged: %v", err)
	}
}

func TestPumpPartialWrites(t *testing.T) {

	conn := &scriptedConn{writeLimit: 3}
	var outgoing bytes.Buffer
	p := newPump(conn, &outgoing, noTimeout)

	outgoing.WriteString("0123456789")
	err := p.flush()
	if err != nil {
		t.Fatalf("pump.flush failed: %s", err)
	}

	if conn.written.String() != "0123456789" {
		t.Errorf("partial writes reassembled incorrectly: %q", conn.written.String())
	}
	if outgoing.Len() != 0 {
		t.Errorf("outgoing queue not drained: %d bytes left", outgoing.Len())
	}
}

func TestPumpBoundedReads(t *testing.T) {

	large := bytes.Repeat([]byte("x"), PUMP_READ_CHUNK_SIZE+1)
	conn := &scriptedConn{readChunks: [][]byte{large}}
	var outgoing, incoming bytes.Buffer
	p := newPump(conn, &outgoing, noTimeout)

	err := p.fill(&incoming)
	if err != nil {
		t.Fatalf("pump.fill failed: %s", err)
	}
	if incoming.Len() != PUMP_READ_CHUNK_SIZE {
		t.Errorf("fill read %d bytes, want %d", incoming.Len(), PUMP_READ_CHUNK_SIZE)
	}
}

func TestPumpAppliesTimeoutDeadlines(t *testing.T) {

	conn := &scriptedConn{readChunks: [][]byte{[]byte("a")}}
	var outgoing, incoming bytes.Buffer

	p := newPump(conn, &outgoing, func() time.Duration { return time.Second })

	outgoing.WriteString("b")
	err := p.fill(&incoming)
	if err != nil {
		t.Fatalf("pump.fill failed: %s", err)
	}

	if conn.writeDeadline == 0 {
		t.Errorf("no write deadline applied")
	}
	if conn.readDeadlines == 0 {
		t.Errorf("no read deadline applied")
	}
}
