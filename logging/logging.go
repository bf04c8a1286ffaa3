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

// Package logging provides a logrus-backed implementation of the
// common.Logger interface used by transport packages for diagnostics.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/Psiphon-Labs/tlstransport/common"
	"github.com/Psiphon-Labs/tlstransport/common/errors"
	"github.com/Psiphon-Labs/tlstransport/common/stacktrace"
	"github.com/sirupsen/logrus"
)

// TraceLogger adds trace context fields to an underlying logrus.Logger and
// implements common.Logger.
type TraceLogger struct {
	logger *logrus.Logger
}

// NewTraceLogger creates a TraceLogger writing JSON log lines at the given
// level to the given writer. When writer is nil, os.Stderr is used.
func NewTraceLogger(writer io.Writer, logLevel string) (*TraceLogger, error) {

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if writer == nil {
		writer = os.Stderr
	}

	return &TraceLogger{
		logger: &logrus.Logger{
			Out:       writer,
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339},
			Hooks:     make(logrus.LevelHooks),
			Level:     level,
		},
	}, nil
}

// WithTrace adds a "trace" field containing the caller's function name and
// source file line number. Use this function when the log has no fields.
func (l *TraceLogger) WithTrace() common.LogTrace {
	return l.logger.WithFields(
		logrus.Fields{
			"trace": stacktrace.GetParentFunctionName(),
		})
}

// WithTraceFields adds a "trace" field containing the caller's function name
// and source file line number. Use this function when the log has fields.
// Note that any existing "trace" field will be renamed to "fields.trace".
func (l *TraceLogger) WithTraceFields(fields common.LogFields) common.LogTrace {
	_, ok := fields["trace"]
	if ok {
		fields["fields.trace"] = fields["trace"]
	}
	fields["trace"] = stacktrace.GetParentFunctionName()
	return l.logger.WithFields(logrus.Fields(fields))
}

// LogMetric emits a metrics log with the given fields at the Info level.
func (l *TraceLogger) LogMetric(metric string, fields common.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Info(metric)
}
