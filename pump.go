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
	"net"
	"sync"
	"time"
)

// PUMP_READ_CHUNK_SIZE bounds each real stream read. 16 KB is the maximum
// TLS record payload size, so one chunk is sufficient for the engine to make
// progress on any record.
const PUMP_READ_CHUNK_SIZE = 16384

// pump shuttles ciphertext between the memory channel queues and the real
// underlying stream. It is the single place the real stream is touched,
// keeping one mockable I/O boundary. The underlying stream is any net.Conn,
// including another Transport, so transports nest to unbounded depth. Every
// real read or write is bounded by the configured timeout, applied as a
// fresh deadline per attempt; errors from the real stream, timeouts
// included, are propagated unchanged.
//
// outgoingMutex guards the outgoing queue, which is appended to by the
// engine's write path and drained by flush on both the read and write paths.
// This supports one concurrent reader and one concurrent writer, the same
// concurrency the TLS engine itself permits.
type pump struct {
	conn          net.Conn
	outgoingMutex sync.Mutex
	outgoing      *bytes.Buffer
	timeout       func() time.Duration
	readBuf       []byte
}

func newPump(conn net.Conn, outgoing *bytes.Buffer, timeout func() time.Duration) *pump {
	return &pump{
		conn:     conn,
		outgoing: outgoing,
		timeout:  timeout,
		readBuf:  make([]byte, PUMP_READ_CHUNK_SIZE),
	}
}

// queue appends outgoing ciphertext produced by the engine, pending flush.
func (p *pump) queue(data []byte) {
	p.outgoingMutex.Lock()
	defer p.outgoingMutex.Unlock()
	p.outgoing.Write(data)
}

// flush writes the entire outgoing queue to the real stream. Partial writes
// consume the written prefix of the queue before the error is returned, so
// no byte is ever dropped or resent.
func (p *pump) flush() error {

	p.outgoingMutex.Lock()
	defer p.outgoingMutex.Unlock()

	for p.outgoing.Len() > 0 {

		if timeout := p.timeout(); timeout > 0 {
			err := p.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err != nil {
				return err
			}
		}

		n, err := p.conn.Write(p.outgoing.Bytes())
		p.outgoing.Next(n)
		if err != nil {
			return err
		}
	}

	return nil
}

// fill first flushes pending outgoing ciphertext, then performs one bounded
// blocking read from the real stream, appending any bytes read to the
// incoming queue. When bytes arrive together with an error, the bytes are
// queued and the error is deferred to the next fill, so buffered ciphertext
// is never lost.
func (p *pump) fill(incoming *bytes.Buffer) error {

	err := p.flush()
	if err != nil {
		return err
	}

	if timeout := p.timeout(); timeout > 0 {
		err := p.conn.SetReadDeadline(time.Now().Add(timeout))
		if err != nil {
			return err
		}
	}

	n, err := p.conn.Read(p.readBuf)
	if n > 0 {
		incoming.Write(p.readBuf[:n])
		return nil
	}

	return err
}
