// SPDX-License-Identifier: MPL-2.0

// Package toolchain discovers the Android SDK/NDK and the Xcode developer
// directory, and resolves the paths of the compilers, binary utilities and
// platform files inside them.
//
// Discovery happens once, when a toolchain value is constructed. The result is
// read-only; every later lookup is a path computation plus an existence check.
// A missing directory or file is reported as a *NotFoundError naming the
// component and the path that was probed.
package toolchain
