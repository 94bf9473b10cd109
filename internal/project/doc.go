// SPDX-License-Identifier: MPL-2.0

// Package project loads a Rust package manifest (Cargo.toml) together with
// its [package.metadata.mobundle] table, and resolves the workspace root and
// the cargo target directory.
package project
