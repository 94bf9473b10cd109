// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
)

// ErrMissingInput is the sentinel error wrapped by MissingInputError.
var ErrMissingInput = errors.New("missing input")

// MissingInputError reports a file or directory a stage needs that does not
// exist: a compiler output, a resource directory, an asset, a library.
type MissingInputError struct {
	// Kind describes the input, e.g. "compiled library" or "resource directory".
	Kind string
	Path string
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

// Unwrap returns ErrMissingInput for errors.Is() compatibility.
func (e *MissingInputError) Unwrap() error { return ErrMissingInput }
