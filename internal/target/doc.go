// SPDX-License-Identifier: MPL-2.0

// Package target is the static catalogue of supported mobile build targets.
//
// Each Target pairs a platform ABI identifier (the name used for on-device
// library directories, e.g. "arm64-v8a") with the Rust compiler triple
// (e.g. "aarch64-linux-android"). Conversions in both directions are exact,
// case-sensitive lookups in a fixed table.
package target
