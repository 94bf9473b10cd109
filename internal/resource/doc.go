// SPDX-License-Identifier: MPL-2.0

// Package resource compiles Android resources with aapt2 and links them with
// the manifest into the base package.
//
// Compilation is incremental: a BLAKE3 fingerprint of every resource file is
// recorded in the output directory, and a file is recompiled only when its
// content changed or its .flat output disappeared.
package resource
