// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/mobundle/mobundle/pkg/types"

// ExitError carries the exit status of a command whose own output already
// explains the failure, such as a doctor table with failed checks. App.run
// passes it through without rendering a catalogue entry, and Execute exits
// with Code.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + e.Code.String()
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
