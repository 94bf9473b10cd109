// SPDX-License-Identifier: MPL-2.0

// Package closure computes the set of shared libraries that must ship next to
// a compiled native library, following DT_NEEDED entries transitively the way
// the dynamic linker does on device.
//
// Libraries provided by the platform are skipped, the C++ runtime is taken
// from the NDK without being inspected, and each library is visited once.
// A dependency that cannot be found in any search directory is reported as a
// warning, unless the request is strict.
package closure
