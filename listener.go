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
	"net"

	"github.com/Psiphon-Labs/tlstransport/common"
	"github.com/Psiphon-Labs/tlstransport/common/errors"
)

// Listener wraps a net.Listener, terminating a server-side TLS session over
// each accepted conn. The accepted conn may itself be the product of another
// TLS layer; the server-side analog of the nesting supported on the client
// side.
type Listener struct {
	net.Listener
	config *Config
}

// NewListener creates a Listener over an inner listener. config follows the
// New contract with ServerSide forced on, so it must carry server
// certificates.
func NewListener(inner net.Listener, config *Config) (*Listener, error) {

	if config == nil {
		return nil, errors.TraceNew("missing config")
	}

	listenerConfig := *config
	listenerConfig.ServerSide = true

	err := listenerConfig.Validate()
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &Listener{
		Listener: inner,
		config:   &listenerConfig,
	}, nil
}

// Accept waits for a connection and drives the server-side TLS handshake
// before returning it, so the returned conn is an Established *Transport.
// A handshake failure is returned with the failed conn already closed; the
// listener remains usable.
func (listener *Listener) Accept() (net.Conn, error) {

	conn, err := listener.Listener.Accept()
	if err != nil {
		return nil, errors.Trace(err)
	}

	transport, err := New(conn, listener.config)
	if err != nil {
		return nil, errors.Trace(err)
	}

	return transport, nil
}

// NewSelfSignedServerConfig creates a server-side Config with an on-the-fly
// self-signed certificate for the given host name, offering http/1.1 via
// ALPN. Intended for tests and development servers.
//
// Limitation: the certificate changes on each call.
func NewSelfSignedServerConfig(hostname string) (*Config, string, error) {

	certificate, privateKey, err := common.GenerateTransportCertificate(hostname)
	if err != nil {
		return nil, "", errors.Trace(err)
	}

	tlsCertificate, err := tls.X509KeyPair(
		[]byte(certificate), []byte(privateKey))
	if err != nil {
		return nil, "", errors.Trace(err)
	}

	config := &Config{
		ServerSide: true,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{tlsCertificate},
			NextProtos:   []string{"http/1.1"},
		},
	}

	return config, certificate, nil
}
