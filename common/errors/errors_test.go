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

package errors

import (
	std_errors "errors"
	"io"
	"strings"
	"testing"
)

func TestTrace(t *testing.T) {

	if Trace(nil) != nil {
		t.Fatalf("Trace(nil) returned an error")
	}
	if TraceMsg(nil, "message") != nil {
		t.Fatalf("TraceMsg(nil) returned an error")
	}

	err := Trace(io.ErrUnexpectedEOF)
	if !std_errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("wrapped error not reachable: %s", err)
	}
	if !strings.Contains(err.Error(), "TestTrace") {
		t.Fatalf("missing caller frame: %s", err)
	}

	err = TraceMsg(io.ErrUnexpectedEOF, "read failed")
	if !std_errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("wrapped error not reachable: %s", err)
	}
	if !strings.Contains(err.Error(), "read failed") {
		t.Fatalf("missing message: %s", err)
	}

	err = TraceNew("new error")
	if !strings.Contains(err.Error(), "TestTrace") ||
		!strings.Contains(err.Error(), "new error") {
		t.Fatalf("unexpected error: %s", err)
	}

	err = Tracef("failed %d times", 2)
	if !strings.Contains(err.Error(), "failed 2 times") {
		t.Fatalf("unexpected error: %s", err)
	}
}
