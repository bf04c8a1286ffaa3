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

/*

Package tlstransport terminates a TLS session over an arbitrary
already-established duplex byte stream, using a TLS engine bound to
in-memory buffers rather than a kernel socket. This enables TLS-in-TLS: an
HTTPS connection tunneled through an HTTPS proxy, where one TLS session
terminates at the proxy and a second, independent session terminates at the
ultimate destination, both carried over the same underlying stream.

A Transport is a net.Conn, and its underlying stream is any net.Conn,
including another Transport, so layering nests to unbounded depth.

*/
package tlstransport

import (
	"crypto/tls"
	"crypto/x509"
	std_errors "errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Psiphon-Labs/tlstransport/common"
	"github.com/Psiphon-Labs/tlstransport/common/errors"
)

// Transport lifecycle states. Transitions are monotonic: a closed Transport
// is never resurrected.
const (
	transportInit = int32(iota)
	transportHandshaking
	transportEstablished
	transportClosed
)

// Transport is a stream-like object that speaks TLS over an underlying
// duplex byte stream it exclusively owns. The full handshake is driven at
// construction: a Transport returned by New is Established and immediately
// usable. Transport implements net.Conn, common.MetricsSource, and
// common.Closer.
//
// All operations are blocking, with no internal goroutines; a call
// completes, blocks up to the configured timeout, or fails. As with net.Conn
// generally, one goroutine may Read while another Writes, but multiple
// concurrent readers or multiple concurrent writers require external
// synchronization.
type Transport struct {
	config  *Config
	conn    net.Conn
	channel *memoryChannel
	engine  tlsEngine
	params  *connectionParameters

	state     atomic.Int32
	timeout   atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// New layers a TLS session over conn, driving the full handshake before
// returning. conn is exclusively owned by the returned Transport and is
// closed when the Transport is closed, on all paths including handshake
// failure: New either returns a fully Established Transport or no usable
// object at all.
//
// Failures retain their character: an unusable conn surfaces its own I/O
// error (reachable with errors.Is), while a host name mismatch or untrusted
// certificate surfaces as a *VerificationError.
func New(conn net.Conn, config *Config) (*Transport, error) {

	if conn == nil {
		return nil, errors.TraceNew("missing conn")
	}
	if config == nil {
		config = &Config{}
	}

	err := config.Validate()
	if err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}

	t := &Transport{
		config: config,
		conn:   conn,
	}
	t.timeout.Store(int64(config.Timeout))

	t.channel = newMemoryChannel(conn, config.StrictEOF, t.GetTimeout)

	t.engine, err = newEngine(t.channel, config)
	if err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}

	t.state.Store(transportHandshaking)

	err = t.handshake()
	if err != nil {
		t.state.Store(transportClosed)
		t.closeOnce.Do(func() {
			t.closeErr = conn.Close()
		})
		return nil, errors.Trace(asVerificationError(err))
	}

	t.state.Store(transportEstablished)

	if config.Logger != nil {
		config.Logger.WithTraceFields(t.GetMetrics()).Debug(
			"TLS transport established")
	}

	return t, nil
}

// handshake runs the engine handshake, with the pump servicing buffer
// starvation, then flushes the final handshake flight.
func (t *Transport) handshake() error {

	err := t.engine.Handshake()
	if err != nil {
		return err
	}

	err = t.channel.pump.flush()
	if err != nil {
		return err
	}

	t.params = t.engine.connectionParameters()
	return nil
}

// Read receives decrypted application data, blocking until plaintext is
// available, the peer closes, or an error occurs. A clean peer close is
// reported as io.EOF, mirroring ordinary stream semantics; an abrupt close
// without close_notify is also io.EOF unless Config.StrictEOF is set, in
// which case it is ErrRaggedEOF. Underlying I/O errors, timeouts included,
// are returned unchanged.
func (t *Transport) Read(p []byte) (int, error) {

	if t.state.Load() != transportEstablished {
		return 0, net.ErrClosed
	}

	n, err := t.engine.Read(p)

	if err != nil && !t.config.StrictEOF &&
		std_errors.Is(err, io.ErrUnexpectedEOF) {
		// The peer closed mid-record without close_notify; suppressed to a
		// clean end-of-stream, matching the channel's record-boundary case.
		err = io.EOF
	}

	if t.isFatal(err) {
		_ = t.Close()
	}

	return n, err
}

// Write encrypts and transmits application data. The net.Conn contract
// applies: a return without error means all of p was accepted by the engine
// and its ciphertext flushed to the underlying stream; otherwise the count
// of bytes accepted before the failure is returned with the error. Data is
// never silently dropped.
func (t *Transport) Write(p []byte) (int, error) {

	if t.state.Load() != transportEstablished {
		return 0, net.ErrClosed
	}

	n, err := t.engine.Write(p)

	flushErr := t.channel.pump.flush()
	if err == nil {
		err = flushErr
	}

	if t.isFatal(err) {
		_ = t.Close()
	}

	return n, err
}

// isFatal indicates whether an operation error makes the session
// unrecoverable, transitioning the Transport to Closed. A clean EOF leaves
// the session open for writes; a timeout is surfaced distinctly and leaves
// closing to the caller.
func (t *Transport) isFatal(err error) bool {
	return err != nil && err != io.EOF && !isTimeout(err)
}

// Close closes the TLS session and then the underlying stream. Close is
// idempotent: repeat calls return the first result and perform no new I/O.
func (t *Transport) Close() error {

	t.closeOnce.Do(func() {

		previousState := t.state.Swap(transportClosed)

		if previousState == transportEstablished {
			// Queue a close_notify and attempt to flush it; best effort, as
			// the underlying stream may already have failed.
			_ = t.engine.Close()
			_ = t.channel.pump.flush()

			if t.config.Logger != nil {
				t.config.Logger.LogMetric("tls_transport", t.GetMetrics())
			}
		}

		t.closeErr = t.conn.Close()
	})

	return t.closeErr
}

// IsClosed implements common.Closer.
func (t *Transport) IsClosed() bool {
	return t.state.Load() == transportClosed
}

// SetTimeout sets the I/O timeout applied to each blocking read or write
// against the underlying stream, for this and all subsequent operations.
// Zero means no timeout.
func (t *Transport) SetTimeout(timeout time.Duration) {
	t.timeout.Store(int64(timeout))
	if timeout == 0 {
		// Clear any deadline a previous timeout left on the underlying
		// stream.
		_ = t.conn.SetDeadline(time.Time{})
	}
}

// GetTimeout returns the configured I/O timeout.
func (t *Transport) GetTimeout() time.Duration {
	return time.Duration(t.timeout.Load())
}

// UnderlyingConn returns the underlying stream, for select/poll-style
// integration. The Transport retains exclusive ownership; reading from or
// writing to the returned conn corrupts the TLS session.
func (t *Transport) UnderlyingConn() net.Conn {
	return t.conn
}

func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// SetDeadline and friends delegate to the underlying stream. This is what
// an outer Transport's pump invokes when transports nest, so deadlines
// reach the bottom conn. When a timeout is configured on this Transport,
// the pump sets its own deadlines per I/O attempt and these calls are
// effectively superseded.

func (t *Transport) SetDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}

func (t *Transport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

func (t *Transport) SetWriteDeadline(deadline time.Time) error {
	return t.conn.SetWriteDeadline(deadline)
}

// Version returns the negotiated TLS protocol version name. Absent before a
// completed handshake.
func (t *Transport) Version() (string, bool) {
	if t.params == nil {
		return "", false
	}
	return tls.VersionName(t.params.version), true
}

// CipherSuite returns the negotiated cipher suite.
func (t *Transport) CipherSuite() (CipherSuiteInfo, bool) {
	if t.params == nil {
		return CipherSuiteInfo{}, false
	}
	return CipherSuiteInfo{
		ID:   t.params.cipherSuite,
		Name: tls.CipherSuiteName(t.params.cipherSuite),
	}, true
}

// SharedCiphers returns, on the server side, the cipher suites shared by
// both peers; on the client side, the suites this endpoint offered.
func (t *Transport) SharedCiphers() ([]CipherSuiteInfo, bool) {
	if t.params == nil || len(t.params.cipherSuites) == 0 {
		return nil, false
	}
	suites := make([]CipherSuiteInfo, len(t.params.cipherSuites))
	for i, id := range t.params.cipherSuites {
		suites[i] = CipherSuiteInfo{ID: id, Name: tls.CipherSuiteName(id)}
	}
	return suites, true
}

// NegotiatedProtocol returns the application protocol agreed via ALPN.
// Absent when no protocol was negotiated.
func (t *Transport) NegotiatedProtocol() (string, bool) {
	if t.params == nil || t.params.negotiatedProtocol == "" {
		return "", false
	}
	return t.params.negotiatedProtocol, true
}

// NegotiatedNPNProtocol returns the protocol agreed via NPN. NPN is a
// legacy mechanism the TLS engine does not support, so this is always
// absent; the accessor exists for socket-compatibility.
func (t *Transport) NegotiatedNPNProtocol() (string, bool) {
	return "", false
}

// Compression returns the negotiated TLS compression method. TLS-level
// compression is disabled, so this is always absent; the accessor exists
// for socket-compatibility.
func (t *Transport) Compression() (string, bool) {
	return "", false
}

// PeerCertificates returns the peer's certificate chain, leaf first.
// Present whenever the peer presented certificates, which on the client
// side is whenever verification occurred.
func (t *Transport) PeerCertificates() ([]*x509.Certificate, bool) {
	if t.params == nil || len(t.params.peerCertificates) == 0 {
		return nil, false
	}
	return t.params.peerCertificates, true
}

// DidResume indicates whether the session was resumed from a previous one.
func (t *Transport) DidResume() bool {
	return t.params != nil && t.params.didResume
}

// GetMetrics implements the common.MetricsSource interface, relaying any
// metrics from the underlying conn.
func (t *Transport) GetMetrics() common.LogFields {

	logFields := make(common.LogFields)

	if t.params != nil {
		logFields["tls_version"] = tls.VersionName(t.params.version)
		logFields["cipher_suite"] = tls.CipherSuiteName(t.params.cipherSuite)
		logFields["negotiated_protocol"] = t.params.negotiatedProtocol
		logFields["resumed_session"] = t.params.didResume
	}
	if t.config.TLSProfile != "" {
		logFields["tls_profile"] = t.config.TLSProfile
	}

	if underlyingMetrics, ok := t.conn.(common.MetricsSource); ok {
		logFields.Add(underlyingMetrics.GetMetrics())
	}

	return logFields
}
