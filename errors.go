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
	std_errors "errors"
	"net"

	utls "github.com/refraction-networking/utls"
)

// ErrRaggedEOF is returned by Transport.Read when the peer closed the
// underlying stream without sending a TLS close_notify and
// Config.StrictEOF is set. With StrictEOF off, the same condition is
// reported as a clean io.EOF.
var ErrRaggedEOF = std_errors.New("connection closed without close_notify")

// VerificationError indicates that the TLS handshake succeeded
// cryptographically but peer identity checks failed: a host name mismatch or
// an untrusted certificate chain. It is reported as a distinct type so
// callers can distinguish "could not establish trust" from "network failed".
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return "peer verification failed: " + e.Err.Error()
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// asVerificationError inspects a handshake error and, when it represents a
// certificate or host name verification failure, wraps it in a
// VerificationError. All other errors, including I/O errors from the
// underlying stream, are returned unchanged so they retain their original
// character.
func asVerificationError(err error) error {

	var hostnameErr x509.HostnameError
	var unknownAuthorityErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var tlsVerificationErr *tls.CertificateVerificationError
	var utlsVerificationErr *utls.CertificateVerificationError

	if std_errors.As(err, &hostnameErr) ||
		std_errors.As(err, &unknownAuthorityErr) ||
		std_errors.As(err, &certInvalidErr) ||
		std_errors.As(err, &tlsVerificationErr) ||
		std_errors.As(err, &utlsVerificationErr) {

		return &VerificationError{Err: err}
	}

	return err
}

// isTimeout indicates whether an error is a timeout from a deadline applied
// to the underlying stream.
func isTimeout(err error) bool {
	var netErr net.Error
	return std_errors.As(err, &netErr) && netErr.Timeout()
}
