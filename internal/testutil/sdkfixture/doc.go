// SPDX-License-Identifier: MPL-2.0

// Package sdkfixture lays out minimal fake Android SDK/NDK and Xcode trees in
// a test's temporary directory, so discovery and stage tests run without a
// real installation.
package sdkfixture
