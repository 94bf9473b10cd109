// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Android is the Android platform.
	Android Platform = "android"
	// Apple is the Apple iOS platform (device and simulator).
	Apple Platform = "apple"
)

// ErrUnsupportedTarget is returned when a triple or ABI is not in the catalogue.
var ErrUnsupportedTarget = errors.New("unsupported target")

type (
	// Platform identifies the packaging platform a target belongs to.
	Platform string

	// Target is one supported architecture of a platform. Targets are small
	// comparable values; two targets are equal when their platform and ABI match.
	Target struct {
		platform Platform
		abi      string
		triple   string
		// clang is the NDK compiler driver prefix. It differs from the Rust
		// triple for 32-bit ARM (armv7a vs armv7).
		clang string
		// sysroot is the directory under sysroot/usr/lib holding the
		// per-API platform libraries.
		sysroot string
		arch    string
	}

	// UnsupportedTargetError names the value that could not be resolved.
	UnsupportedTargetError struct {
		Platform Platform
		Value    string
	}
)

var catalog = []Target{
	{platform: Android, abi: "armeabi-v7a", triple: "armv7-linux-androideabi", clang: "armv7a-linux-androideabi", sysroot: "arm-linux-androideabi", arch: "arm"},
	{platform: Android, abi: "arm64-v8a", triple: "aarch64-linux-android", clang: "aarch64-linux-android", sysroot: "aarch64-linux-android", arch: "arm64"},
	{platform: Android, abi: "x86", triple: "i686-linux-android", clang: "i686-linux-android", sysroot: "i686-linux-android", arch: "x86"},
	{platform: Android, abi: "x86_64", triple: "x86_64-linux-android", clang: "x86_64-linux-android", sysroot: "x86_64-linux-android", arch: "x86_64"},
	{platform: Apple, abi: "arm64", triple: "aarch64-apple-ios", arch: "arm64"},
	{platform: Apple, abi: "x86_64", triple: "x86_64-apple-ios", arch: "x86_64"},
	{platform: Apple, abi: "arm64-sim", triple: "aarch64-apple-ios-sim", arch: "arm64"},
}

// All returns every catalogued target of the platform in catalogue order.
func All(p Platform) []Target {
	var out []Target
	for _, t := range catalog {
		if t.platform == p {
			out = append(out, t)
		}
	}
	return out
}

// Default returns the target used when none is requested explicitly.
func Default(p Platform) Target {
	switch p {
	case Apple:
		return catalog[4]
	default:
		return catalog[1]
	}
}

// FromTriple resolves a Rust compiler triple.
func FromTriple(triple string) (Target, error) {
	for _, t := range catalog {
		if t.triple == triple {
			return t, nil
		}
	}
	return Target{}, &UnsupportedTargetError{Value: triple}
}

// FromABI resolves a platform ABI identifier. ABI names are only unique
// within a platform ("x86_64" exists for both).
func FromABI(p Platform, abi string) (Target, error) {
	for _, t := range catalog {
		if t.platform == p && t.abi == abi {
			return t, nil
		}
	}
	return Target{}, &UnsupportedTargetError{Platform: p, Value: abi}
}

// Parse accepts either a triple or an ABI identifier for the platform,
// trying the triple first.
func Parse(p Platform, s string) (Target, error) {
	if t, err := FromTriple(s); err == nil && t.platform == p {
		return t, nil
	}
	return FromABI(p, s)
}

// ParseList resolves each value with Parse and drops duplicates, keeping the
// first occurrence. An empty list yields the platform default.
func ParseList(p Platform, values []string) ([]Target, error) {
	if len(values) == 0 {
		return []Target{Default(p)}, nil
	}
	seen := make(map[Target]bool, len(values))
	out := make([]Target, 0, len(values))
	for _, v := range values {
		t, err := Parse(p, strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Platform returns the platform the target belongs to.
func (t Target) Platform() Platform { return t.platform }

// ABI returns the platform ABI identifier, used for lib/<abi>/ directories.
func (t Target) ABI() string { return t.abi }

// Triple returns the Rust compiler triple.
func (t Target) Triple() string { return t.triple }

// ClangTriple returns the NDK clang driver prefix (Android only).
func (t Target) ClangTriple() string { return t.clang }

// SysrootTriple returns the sysroot library directory name (Android only).
func (t Target) SysrootTriple() string { return t.sysroot }

// Arch returns the architecture name understood by lipo and codesign.
func (t Target) Arch() string { return t.arch }

// IsSimulator reports whether the target runs on the iOS simulator.
func (t Target) IsSimulator() bool {
	return t.platform == Apple && (strings.HasSuffix(t.triple, "-sim") || t.triple == "x86_64-apple-ios")
}

// EnvTriple returns the triple in the form cargo expects in CC_<triple>-style
// variable names: dashes replaced by underscores.
func (t Target) EnvTriple() string { return strings.ReplaceAll(t.triple, "-", "_") }

// CargoEnvTriple returns the upper-cased triple used in CARGO_TARGET_<TRIPLE>_* variables.
func (t Target) CargoEnvTriple() string { return strings.ToUpper(t.EnvTriple()) }

// IsZero reports whether t is the zero Target.
func (t Target) IsZero() bool { return t.triple == "" }

// String implements fmt.Stringer.
func (t Target) String() string {
	if t.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s (%s)", t.abi, t.triple)
}

// Error implements the error interface.
func (e *UnsupportedTargetError) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("unsupported target triple %q", e.Value)
	}
	return fmt.Sprintf("unsupported %s target %q", e.Platform, e.Value)
}

// Unwrap returns ErrUnsupportedTarget for errors.Is() compatibility.
func (e *UnsupportedTargetError) Unwrap() error { return ErrUnsupportedTarget }
