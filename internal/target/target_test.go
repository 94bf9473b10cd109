// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"testing"
)

func TestCatalogRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range []Platform{Android, Apple} {
		for _, tgt := range All(p) {
			byTriple, err := FromTriple(tgt.Triple())
			if err != nil {
				t.Fatalf("FromTriple(%q): %v", tgt.Triple(), err)
			}
			if byTriple != tgt {
				t.Errorf("FromTriple(%q) = %v, want %v", tgt.Triple(), byTriple, tgt)
			}

			byABI, err := FromABI(p, tgt.ABI())
			if err != nil {
				t.Fatalf("FromABI(%q): %v", tgt.ABI(), err)
			}
			if byABI.Triple() != tgt.Triple() {
				t.Errorf("FromABI(%q).Triple() = %q, want %q", tgt.ABI(), byABI.Triple(), tgt.Triple())
			}
		}
	}
}

func TestAndroidTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		abi     string
		triple  string
		clang   string
		sysroot string
	}{
		{"armeabi-v7a", "armv7-linux-androideabi", "armv7a-linux-androideabi", "arm-linux-androideabi"},
		{"arm64-v8a", "aarch64-linux-android", "aarch64-linux-android", "aarch64-linux-android"},
		{"x86", "i686-linux-android", "i686-linux-android", "i686-linux-android"},
		{"x86_64", "x86_64-linux-android", "x86_64-linux-android", "x86_64-linux-android"},
	}

	for _, tt := range tests {
		t.Run(tt.abi, func(t *testing.T) {
			t.Parallel()

			tgt, err := FromABI(Android, tt.abi)
			if err != nil {
				t.Fatalf("FromABI: %v", err)
			}
			if tgt.Triple() != tt.triple || tgt.ClangTriple() != tt.clang || tgt.SysrootTriple() != tt.sysroot {
				t.Errorf("got (%s, %s, %s), want (%s, %s, %s)",
					tgt.Triple(), tgt.ClangTriple(), tgt.SysrootTriple(), tt.triple, tt.clang, tt.sysroot)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func() (Target, error)
	}{
		{"unknown triple", func() (Target, error) { return FromTriple("riscv64-linux-android") }},
		{"case sensitive", func() (Target, error) { return FromTriple("AARCH64-linux-android") }},
		{"abi on wrong platform", func() (Target, error) { return FromABI(Apple, "arm64-v8a") }},
		{"parse rejects other platform triple", func() (Target, error) { return Parse(Apple, "aarch64-linux-android") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.fn()
			if !errors.Is(err, ErrUnsupportedTarget) {
				t.Fatalf("error = %v, want ErrUnsupportedTarget", err)
			}
			var ute *UnsupportedTargetError
			if !errors.As(err, &ute) {
				t.Fatalf("error type = %T, want *UnsupportedTargetError", err)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	got, err := ParseList(Android, []string{"arm64-v8a", "aarch64-linux-android", "x86"})
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ParseList returned %d targets, want 2 (duplicates dropped): %v", len(got), got)
	}
	if got[0].ABI() != "arm64-v8a" || got[1].ABI() != "x86" {
		t.Errorf("order not preserved: %v", got)
	}

	def, err := ParseList(Apple, nil)
	if err != nil {
		t.Fatalf("ParseList(nil): %v", err)
	}
	if len(def) != 1 || def[0] != Default(Apple) {
		t.Errorf("ParseList(nil) = %v, want [%v]", def, Default(Apple))
	}
}

func TestEnvTriples(t *testing.T) {
	t.Parallel()

	tgt, err := FromABI(Android, "armeabi-v7a")
	if err != nil {
		t.Fatal(err)
	}
	if got := tgt.EnvTriple(); got != "armv7_linux_androideabi" {
		t.Errorf("EnvTriple() = %q", got)
	}
	if got := tgt.CargoEnvTriple(); got != "ARMV7_LINUX_ANDROIDEABI" {
		t.Errorf("CargoEnvTriple() = %q", got)
	}
}

func TestIsSimulator(t *testing.T) {
	t.Parallel()

	for abi, want := range map[string]bool{"arm64": false, "x86_64": true, "arm64-sim": true} {
		tgt, err := FromABI(Apple, abi)
		if err != nil {
			t.Fatal(err)
		}
		if tgt.IsSimulator() != want {
			t.Errorf("%s IsSimulator() = %v, want %v", abi, tgt.IsSimulator(), want)
		}
	}
}
