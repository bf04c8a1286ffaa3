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
	"net"

	"github.com/Psiphon-Labs/tlstransport/common/errors"
)

// Dial creates a connection with config.Dial and layers a client-side
// Transport over it. When config.ServerHostname is blank, the host name from
// addr is used for SNI and verification.
//
// The handshake is interrupted if ctx is cancelled or its deadline passes;
// the interrupted conn is closed.
func Dial(
	ctx context.Context,
	network, addr string,
	config *Config) (*Transport, error) {

	if config == nil || config.Dial == nil {
		return nil, errors.TraceNew("missing dialer")
	}
	if config.ServerSide {
		return nil, errors.TraceNew("Dial is client-side only")
	}

	rawConn, err := config.Dial(ctx, network, addr)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if config.ServerHostname == "" {
		hostname, _, err := net.SplitHostPort(addr)
		if err != nil {
			rawConn.Close()
			return nil, errors.Trace(err)
		}
		dialConfig := *config
		dialConfig.ServerHostname = hostname
		config = &dialConfig
	}

	type newTransportResult struct {
		transport *Transport
		err       error
	}

	resultChannel := make(chan newTransportResult, 1)

	go func() {
		// New owns rawConn and closes it on failure.
		transport, err := New(rawConn, config)
		resultChannel <- newTransportResult{transport: transport, err: err}
	}()

	select {
	case result := <-resultChannel:
		return result.transport, errors.Trace(result.err)

	case <-ctx.Done():
		// Interrupt the handshake goroutine.
		rawConn.Close()
		result := <-resultChannel
		if result.transport != nil {
			result.transport.Close()
		}
		return nil, errors.Trace(ctx.Err())
	}
}
