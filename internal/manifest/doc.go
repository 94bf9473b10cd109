// SPDX-License-Identifier: MPL-2.0

// Package manifest models AndroidManifest.xml.
//
// The types double as the user-facing configuration schema: every field is
// optional in [package.metadata.mobundle.android.manifest], and Generate fills
// whatever is missing so the result always parses on device. Values supplied
// by the user are never overwritten.
package manifest
