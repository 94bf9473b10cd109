// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared across the packaging pipeline:
// external tool exit codes, build profiles, package identity and the
// missing-input error.
package types
