// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalogue of Markdown help
// pages, rendered with glamour, for the failures users can fix themselves
// such as a missing SDK.
package issue
