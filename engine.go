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
	"crypto/tls"
	"crypto/x509"
	"io"
	"slices"

	"github.com/Psiphon-Labs/tlstransport/common/errors"
	utls "github.com/refraction-networking/utls"
)

// tlsEngine is the interface to a TLS state machine bound to the memory
// channel. Engines operate purely against the channel; they never touch the
// real underlying stream, which makes them independently testable with
// synthetic conns. Read decrypts available records, Write encrypts and
// queues records, Close queues a close_notify.
type tlsEngine interface {
	io.ReadWriteCloser

	// Handshake drives the full TLS handshake, including peer certificate
	// and host name verification when configured.
	Handshake() error

	// connectionParameters returns the negotiated session parameters.
	// Valid only after a successful Handshake; immutable thereafter.
	connectionParameters() *connectionParameters
}

// connectionParameters is the immutable set of session parameters captured
// when the handshake completes.
type connectionParameters struct {
	version            uint16
	cipherSuite        uint16
	negotiatedProtocol string
	peerCertificates   []*x509.Certificate
	didResume          bool

	// cipherSuites is, on the server side, the intersection of the client's
	// offered suites and this endpoint's enabled suites; on the client side,
	// the suites this endpoint offered.
	cipherSuites []uint16
}

// CipherSuiteInfo describes a TLS cipher suite.
type CipherSuiteInfo struct {
	ID   uint16
	Name string
}

// newEngine creates the TLS engine for a transport, bound to the engine side
// of the memory channel. The stock crypto/tls engine serves servers and
// clients; when a client configures a TLSProfile, the utls engine is used
// instead, parroting the corresponding ClientHello fingerprint.
func newEngine(channel *memoryChannel, config *Config) (tlsEngine, error) {

	tlsConfig := config.effectiveTLSConfig()

	if config.ServerSide {
		return newServerEngine(channel, tlsConfig), nil
	}

	if config.TLSProfile != "" {
		return newUTLSEngine(channel, tlsConfig, config.TLSProfile)
	}

	return newClientEngine(channel, tlsConfig), nil
}

// enabledCipherSuites lists the cipher suites this endpoint supports under
// the given config. TLS 1.3 suites are not configurable in crypto/tls and
// are always enabled.
func enabledCipherSuites(tlsConfig *tls.Config) []uint16 {

	var ids []uint16
	for _, suite := range tls.CipherSuites() {

		tls13Only := len(suite.SupportedVersions) == 1 &&
			suite.SupportedVersions[0] == tls.VersionTLS13

		if tls13Only ||
			len(tlsConfig.CipherSuites) == 0 ||
			slices.Contains(tlsConfig.CipherSuites, suite.ID) {

			ids = append(ids, suite.ID)
		}
	}
	return ids
}

// stdEngine is a crypto/tls engine, client or server side.
type stdEngine struct {
	*tls.Conn
	enabledSuites []uint16
	serverSide    bool

	// offeredSuites is captured from the ClientHello on the server side.
	offeredSuites []uint16
}

func newClientEngine(channel *memoryChannel, tlsConfig *tls.Config) *stdEngine {
	return &stdEngine{
		Conn:          tls.Client(channel, tlsConfig),
		enabledSuites: enabledCipherSuites(tlsConfig),
	}
}

func newServerEngine(channel *memoryChannel, tlsConfig *tls.Config) *stdEngine {

	engine := &stdEngine{
		enabledSuites: enabledCipherSuites(tlsConfig),
		serverSide:    true,
	}

	// Capture the client's offered cipher suites for SharedCiphers,
	// preserving any caller-installed GetConfigForClient.
	callerGetConfigForClient := tlsConfig.GetConfigForClient
	tlsConfig.GetConfigForClient = func(
		hello *tls.ClientHelloInfo) (*tls.Config, error) {

		engine.offeredSuites = append([]uint16(nil), hello.CipherSuites...)
		if callerGetConfigForClient != nil {
			return callerGetConfigForClient(hello)
		}
		return nil, nil
	}

	engine.Conn = tls.Server(channel, tlsConfig)
	return engine
}

func (engine *stdEngine) connectionParameters() *connectionParameters {

	state := engine.ConnectionState()

	suites := engine.enabledSuites
	if engine.serverSide {
		shared := make([]uint16, 0, len(engine.offeredSuites))
		for _, id := range engine.offeredSuites {
			if slices.Contains(engine.enabledSuites, id) {
				shared = append(shared, id)
			}
		}
		suites = shared
	}

	return &connectionParameters{
		version:            state.Version,
		cipherSuite:        state.CipherSuite,
		negotiatedProtocol: state.NegotiatedProtocol,
		peerCertificates:   state.PeerCertificates,
		didResume:          state.DidResume,
		cipherSuites:       suites,
	}
}

// utlsEngine is a client-side utls engine parroting a ClientHello
// fingerprint profile.
type utlsEngine struct {
	*utls.UConn
}

func profileClientHelloID(tlsProfile string) (utls.ClientHelloID, error) {

	switch tlsProfile {
	case TLS_PROFILE_CHROME:
		return utls.HelloChrome_Auto, nil
	case TLS_PROFILE_FIREFOX:
		return utls.HelloFirefox_Auto, nil
	case TLS_PROFILE_IOS:
		return utls.HelloIOS_Auto, nil
	case TLS_PROFILE_RANDOMIZED:
		return utls.HelloRandomized, nil
	case TLS_PROFILE_GOLANG:
		return utls.HelloGolang, nil
	}
	return utls.ClientHelloID{}, errors.Tracef("unknown TLS profile: %s", tlsProfile)
}

func newUTLSEngine(
	channel *memoryChannel,
	tlsConfig *tls.Config,
	tlsProfile string) (*utlsEngine, error) {

	clientHelloID, err := profileClientHelloID(tlsProfile)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// utls defines its own Config type; carry over the fields a client
	// transport uses.
	utlsConfig := &utls.Config{
		RootCAs:            tlsConfig.RootCAs,
		ServerName:         tlsConfig.ServerName,
		InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
		NextProtos:         tlsConfig.NextProtos,
		CipherSuites:       tlsConfig.CipherSuites,
		MinVersion:         tlsConfig.MinVersion,
		MaxVersion:         tlsConfig.MaxVersion,
		ClientSessionCache: utls.NewLRUClientSessionCache(0),
	}

	return &utlsEngine{
		UConn: utls.UClient(channel, utlsConfig, clientHelloID),
	}, nil
}

func (engine *utlsEngine) connectionParameters() *connectionParameters {

	state := engine.ConnectionState()

	// The marshaled ClientHello records what this client offered.
	var offeredSuites []uint16
	if engine.HandshakeState.Hello != nil {
		offeredSuites = append(
			[]uint16(nil), engine.HandshakeState.Hello.CipherSuites...)
	}

	return &connectionParameters{
		version:            state.Version,
		cipherSuite:        state.CipherSuite,
		negotiatedProtocol: state.NegotiatedProtocol,
		peerCertificates:   state.PeerCertificates,
		didResume:          state.DidResume,
		cipherSuites:       offeredSuites,
	}
}
