// SPDX-License-Identifier: MPL-2.0

// Package pipeline sequences the packaging stages for one platform.
//
// A BuildContext is resolved once from the loaded project and the merged
// settings and is read-only afterwards. Toolchain discovery happens when a
// pipeline is constructed. Run then compiles and resolves every requested
// target on a bounded worker group, waits for all of them, and continues
// single-threaded: descriptor generation, resources, assembly, signing,
// verification and the optional upload. Every failure is reported as a
// *StageError naming the stage and, for per-target stages, the target.
package pipeline
