// SPDX-License-Identifier: MPL-2.0

// Package toolexectest provides an in-memory toolexec.Runner for stage tests.
// Handlers registered per tool name emulate the tool's side effects (writing
// the output file, printing readelf output, failing with an exit code).
package toolexectest
