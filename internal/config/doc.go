// SPDX-License-Identifier: MPL-2.0

// Package config handles the global mobundle configuration using Viper with
// CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/mobundle/config.cue on Linux,
// ~/Library/Application Support/mobundle/config.cue on macOS and
// %APPDATA%\mobundle\config.cue on Windows, validated against the embedded
// config_schema.cue, layered over built-in defaults, and overridden by
// MOBUNDLE_* environment variables (MOBUNDLE_BUILD_JOBS=4).
//
// Project metadata in Cargo.toml and command-line flags take precedence over
// everything here; that merge happens in the command layer.
package config
