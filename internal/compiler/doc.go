// SPDX-License-Identifier: MPL-2.0

// Package compiler drives `cargo build` for one mobile target at a time.
//
// For Android it points cargo at the NDK's API-level-specific clang drivers
// through CC_<triple>, CXX_<triple>, AR_<triple> and
// CARGO_TARGET_<TRIPLE>_LINKER. For Apple it exports SDKROOT and
// IPHONEOS_DEPLOYMENT_TARGET. The compiled artifact is located at the
// conventional cargo output path and its existence is verified.
package compiler
