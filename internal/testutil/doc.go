// SPDX-License-Identifier: MPL-2.0

// Package testutil provides small helpers shared by tests: environment
// manipulation, injectable environments and file tree fixtures.
//
// Fakes for specific subsystems live in subpackages: toolexectest records
// and scripts external tool invocations, sdkfixture lays out fake Android
// SDK/NDK and Xcode installations.
package testutil
