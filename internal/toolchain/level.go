// SPDX-License-Identifier: MPL-2.0

package toolchain

import "slices"

// maxPlatformLevel bounds the upward search of SelectPlatformLevel.
const maxPlatformLevel = 99

// SelectPlatformLevel picks the platform level to use for requested from the
// available ones. It searches downward from requested to 1 and, when nothing
// is found, upward to maxPlatformLevel. The boolean is false when no level
// in either direction is available.
func SelectPlatformLevel(available []int, requested int) (int, bool) {
	if requested > maxPlatformLevel {
		requested = maxPlatformLevel
	}
	for n := requested; n >= 1; n-- {
		if slices.Contains(available, n) {
			return n, true
		}
	}
	for n := max(requested+1, 1); n <= maxPlatformLevel; n++ {
		if slices.Contains(available, n) {
			return n, true
		}
	}
	return 0, false
}
