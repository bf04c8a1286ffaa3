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

// Package common provides interfaces and helpers shared across the
// transport packages.
package common

import "net"

// Logger exposes a logging interface that transport packages use for
// diagnostics without binding to a concrete logging implementation. The
// logging package provides a logrus-backed implementation; callers may
// supply their own.
type Logger interface {
	WithTrace() LogTrace
	WithTraceFields(fields LogFields) LogTrace
	LogMetric(metric string, fields LogFields)
}

// LogTrace is the interface for the leveled log calls returned by
// Logger.WithTrace/WithTraceFields.
type LogTrace interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warning(args ...interface{})
	Error(args ...interface{})
}

// LogFields is type-compatible with logrus.Fields.
type LogFields map[string]interface{}

// Add copies log fields from b to a, skipping fields which already exist,
// regardless of value, in a.
func (a LogFields) Add(b LogFields) {
	for name, value := range b {
		_, ok := a[name]
		if !ok {
			a[name] = value
		}
	}
}

// MetricsSource is an object that provides metrics to be logged.
type MetricsSource interface {

	// GetMetrics returns a LogFields populated with
	// metrics from the MetricsSource.
	GetMetrics() LogFields
}

// Closer defines the interface to a type, typically a net.Conn, that can be
// closed and can report whether it has been closed.
type Closer interface {
	IsClosed() bool
}

// UnderlyingConnSource defines the interface for a type, typically a layered
// net.Conn, which provides access to the conn it is layered over. This
// allows callers to reach the bottom conn of a stack of transports, for
// select/poll-style integration.
type UnderlyingConnSource interface {
	UnderlyingConn() net.Conn
}
