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

// Package proxyutil provides policy-free helpers for callers layering
// transports through HTTP proxies. Proxy selection, header injection, and
// connection pooling remain the caller's responsibility.
package proxyutil

import (
	"crypto/tls"
	"net/url"
	"os"

	"github.com/Psiphon-Labs/tlstransport/common/errors"
)

// RequiresHTTPTunnel reports whether reaching a destination through the
// given proxy requires an HTTP CONNECT tunnel, the configuration under
// which a TLS-in-TLS transport is layered over the proxy connection.
//
// Plain HTTP destinations are forwarded, never tunneled. An HTTPS proxy may
// be configured to forward HTTPS destinations instead of tunneling them;
// otherwise a tunnel is always used.
func RequiresHTTPTunnel(
	proxyURL *url.URL,
	destinationScheme string,
	useForwardingForHTTPS bool) bool {

	if proxyURL == nil {
		return false
	}

	if destinationScheme == "http" {
		return false
	}

	if proxyURL.Scheme == "https" && useForwardingForHTTPS {
		return false
	}

	return true
}

// ClientCertificateFromEnvironment returns the proxy client certificate and
// key file names configured in the PROXY_SSLCERT and PROXY_SSLKEY
// environment variables. ok is false when no certificate is configured.
func ClientCertificateFromEnvironment() (certificateFile, keyFile string, ok bool) {

	certificateFile = os.Getenv("PROXY_SSLCERT")
	keyFile = os.Getenv("PROXY_SSLKEY")

	return certificateFile, keyFile, certificateFile != ""
}

// LoadClientCertificateFromEnvironment loads the proxy client certificate
// configured in the environment. The certificate is nil when none is
// configured. Password-protected keys are not supported.
func LoadClientCertificateFromEnvironment() (*tls.Certificate, error) {

	certificateFile, keyFile, ok := ClientCertificateFromEnvironment()
	if !ok {
		return nil, nil
	}

	certificate, err := tls.LoadX509KeyPair(certificateFile, keyFile)
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &certificate, nil
}
