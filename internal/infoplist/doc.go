// SPDX-License-Identifier: MPL-2.0

// Package infoplist models the Info.plist of an iOS application bundle and
// encodes it in any of the property list formats.
package infoplist
