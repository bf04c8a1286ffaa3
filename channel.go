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
	"io"
	"net"
	"sync/atomic"
	"time"
)

// memoryChannel is a pair of unbounded FIFO byte queues standing in for a
// socket from the TLS engine's perspective. The engine reads and writes only
// these queues, never the real underlying stream. memoryChannel implements
// net.Conn, the reader/writer abstraction Go TLS engines bind to.
//
// The incoming queue holds ciphertext read from the real stream by the pump;
// the outgoing queue holds ciphertext produced by the engine, pending flush
// to the real stream. When the engine reads and the incoming queue is empty,
// the pump is invoked synchronously: first flushing any pending outgoing
// ciphertext, then performing one bounded read from the real stream. This is
// the blocking rendition of the needs-more-input/has-output-pending signal
// loop; the pump remains the only component touching the real stream.
//
// memoryChannel supports one concurrent reader plus one concurrent writer,
// matching the TLS engine's own concurrency contract: the incoming queue is
// touched only by the read path, while the outgoing queue is guarded by the
// pump.
type memoryChannel struct {
	pump         *pump
	incoming     bytes.Buffer
	outgoing     bytes.Buffer
	strictEOF    bool
	sawStreamEnd bool
	isClosed     atomic.Bool
}

func newMemoryChannel(conn net.Conn, strictEOF bool, timeout func() time.Duration) *memoryChannel {
	channel := &memoryChannel{
		strictEOF: strictEOF,
	}
	channel.pump = newPump(conn, &channel.outgoing, timeout)
	return channel
}

// Read supplies buffered incoming ciphertext to the TLS engine, pumping the
// real stream when the queue is starved. Once the real stream has ended,
// Read returns io.EOF at a queue boundary, or ErrRaggedEOF in strict mode:
// a TLS close_notify never reaches this path, as the engine consumes it from
// the queue and stops reading, so end-of-stream observed here means the peer
// closed without one.
func (channel *memoryChannel) Read(p []byte) (int, error) {

	if channel.isClosed.Load() {
		return 0, net.ErrClosed
	}

	for channel.incoming.Len() == 0 {

		if channel.sawStreamEnd {
			if channel.strictEOF {
				return 0, ErrRaggedEOF
			}
			return 0, io.EOF
		}

		err := channel.pump.fill(&channel.incoming)
		if err == io.EOF {
			channel.sawStreamEnd = true
		} else if err != nil {
			return 0, err
		}
	}

	return channel.incoming.Read(p)
}

// Write queues outgoing ciphertext produced by the TLS engine. The queue is
// unbounded; bytes reach the real stream on the next pump flush.
func (channel *memoryChannel) Write(p []byte) (int, error) {

	if channel.isClosed.Load() {
		return 0, net.ErrClosed
	}

	channel.pump.queue(p)
	return len(p), nil
}

// Close marks the engine side of the channel closed. The real underlying
// stream is owned by the Transport and is not closed here.
func (channel *memoryChannel) Close() error {
	channel.isClosed.Store(true)
	return nil
}

func (channel *memoryChannel) LocalAddr() net.Addr {
	return channel.pump.conn.LocalAddr()
}

func (channel *memoryChannel) RemoteAddr() net.Addr {
	return channel.pump.conn.RemoteAddr()
}

// Deadlines are managed by the pump, which applies the configured timeout to
// each real I/O attempt; engine-side deadline calls are accepted and
// ignored.

func (channel *memoryChannel) SetDeadline(t time.Time) error {
	return nil
}

func (channel *memoryChannel) SetReadDeadline(t time.Time) error {
	return nil
}

func (channel *memoryChannel) SetWriteDeadline(t time.Time) error {
	return nil
}
