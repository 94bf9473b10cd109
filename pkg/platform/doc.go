// SPDX-License-Identifier: MPL-2.0

// Package platform names host operating systems and the executable suffixes
// their SDK tools carry.
package platform
