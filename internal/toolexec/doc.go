// SPDX-License-Identifier: MPL-2.0

// Package toolexec runs external tools (cargo, aapt2, zipalign, signers, ...)
// and turns non-zero exits into ToolError values that carry the rendered
// command line together with the captured stdout and stderr.
//
// Every pipeline stage talks to the outside world through the Runner
// interface, so tests substitute a fake runner or an exec.Cmd factory that
// re-enters the test binary.
package toolexec
