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
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/Psiphon-Labs/tlstransport/common"
	"github.com/Psiphon-Labs/tlstransport/common/errors"
)

// Dialer is a custom network dialer. Transports layered with Dial are built
// on top of a connection created with a Dialer; this package never initiates
// raw connections itself.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// TLS ClientHello profiles for client-side transports. When a profile is
// specified, the client handshake is performed with utls using the
// corresponding fingerprint instead of the stock crypto/tls ClientHello.
const (
	TLS_PROFILE_CHROME     = "chrome"
	TLS_PROFILE_FIREFOX    = "firefox"
	TLS_PROFILE_IOS        = "ios"
	TLS_PROFILE_RANDOMIZED = "randomized"
	TLS_PROFILE_GOLANG     = "golang"
)

// Config specifies the behavior of a Transport.
type Config struct {

	// TLSConfig supplies TLS parameters: certificates and, for servers,
	// the ALPN protocols to offer; for clients, root CAs and cipher suite
	// preferences. TLSConfig is cloned and never mutated. May be nil for
	// clients, in which case host system defaults are used.
	TLSConfig *tls.Config

	// ServerHostname is the host name sent in SNI and verified against the
	// peer certificate on the client side. Overrides TLSConfig.ServerName
	// when set. Ignored for server-side transports.
	ServerHostname string

	// ServerSide indicates that this endpoint is the TLS server.
	ServerSide bool

	// StrictEOF reports a peer close without a TLS close_notify as
	// ErrRaggedEOF. When false, the default, an abrupt peer close is
	// reported as a clean end-of-stream, io.EOF.
	StrictEOF bool

	// TLSProfile selects a utls ClientHello fingerprint for client-side
	// transports; see the TLS_PROFILE constants. When blank, the stock
	// crypto/tls engine is used. Must be blank for server-side transports.
	TLSProfile string

	// Timeout is the initial I/O timeout applied to each blocking read or
	// write against the underlying conn. Zero means no timeout. May be
	// changed later with Transport.SetTimeout.
	Timeout time.Duration

	// Dial is the network connection dialer used by the Dial function. TLS
	// is layered on top of a connection created with Dial. Not used by New.
	Dial Dialer

	// Logger, when set, receives diagnostic logs. May be nil.
	Logger common.Logger
}

// Validate checks that config values are well formed. Validate does not
// check that server-side certificates verify, or other properties only
// established during a handshake.
func (config *Config) Validate() error {

	if config.ServerSide {
		if config.TLSProfile != "" {
			return errors.TraceNew("TLSProfile is client-side only")
		}
		if config.TLSConfig == nil ||
			(len(config.TLSConfig.Certificates) == 0 &&
				config.TLSConfig.GetCertificate == nil) {
			return errors.TraceNew("server-side config requires certificates")
		}
	} else if config.TLSProfile != "" {
		_, err := profileClientHelloID(config.TLSProfile)
		if err != nil {
			return errors.Trace(err)
		}
	}

	return nil
}

// effectiveTLSConfig produces the tls.Config handed to the TLS engine:
// a clone of the caller's TLSConfig with ServerHostname applied.
func (config *Config) effectiveTLSConfig() *tls.Config {

	var tlsConfig *tls.Config
	if config.TLSConfig != nil {
		tlsConfig = config.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}

	if !config.ServerSide && config.ServerHostname != "" {
		tlsConfig.ServerName = config.ServerHostname
	}

	return tlsConfig
}
