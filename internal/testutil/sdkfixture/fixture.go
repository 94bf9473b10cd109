// SPDX-License-Identifier: MPL-2.0

package sdkfixture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
)

type (
	// Android is a fake SDK with one side-by-side NDK.
	Android struct {
		SDK string
		NDK string
		// Revision is the NDK Pkg.Revision written to source.properties.
		Revision string
		// APILevel is the single sysroot/clang level created.
		APILevel int
		// SystemLibs are the platform libraries placed in the sysroot.
		SystemLibs []string
	}

	// Xcode is a fake developer directory with one device and one simulator SDK.
	Xcode struct {
		DeveloperDir string
		SDKVersion   string
	}
)

// DefaultSystemLibs are placed in every fake sysroot level.
var DefaultSystemLibs = []string{"libandroid.so", "libc.so", "libdl.so", "liblog.so", "libm.so"}

// NewAndroid creates a fake SDK/NDK with the given NDK revision (for
// example "25.2.9519653").
func NewAndroid(t testing.TB, revision string) *Android {
	t.Helper()

	sdk := t.TempDir()
	a := &Android{
		SDK:        sdk,
		NDK:        filepath.Join(sdk, "ndk", revision),
		Revision:   revision,
		APILevel:   21,
		SystemLibs: DefaultSystemLibs,
	}

	bt := filepath.Join(sdk, "build-tools", "34.0.0")
	for _, tool := range []string{"aapt2", "zipalign", "apksigner"} {
		Touch(t, filepath.Join(bt, tool))
	}
	for _, level := range []int{33, 34} {
		Touch(t, filepath.Join(sdk, "platforms", fmt.Sprintf("android-%d", level), "android.jar"))
	}

	WriteFile(t, filepath.Join(a.NDK, "source.properties"), "Pkg.Desc = Android NDK\nPkg.Revision = "+revision+"\n")

	prebuilt := filepath.Join(a.NDK, "toolchains", "llvm", "prebuilt", toolchain.HostTag("linux"))
	bin := filepath.Join(prebuilt, "bin")
	Touch(t, filepath.Join(bin, "llvm-ar"))
	Touch(t, filepath.Join(bin, "llvm-readelf"))

	for _, tgt := range target.All(target.Android) {
		for _, driver := range []string{"clang", "clang++"} {
			Touch(t, filepath.Join(bin, fmt.Sprintf("%s%d-%s", tgt.ClangTriple(), a.APILevel, driver)))
		}
		lib := filepath.Join(prebuilt, "sysroot", "usr", "lib", tgt.SysrootTriple())
		Touch(t, filepath.Join(lib, toolchain.RuntimeLibrary))
		for _, so := range a.SystemLibs {
			Touch(t, filepath.Join(lib, fmt.Sprint(a.APILevel), so))
		}
	}
	return a
}

// Options returns discovery options pointing at the fixture with an empty
// environment and a Linux host layout.
func (a *Android) Options() toolchain.AndroidOptions {
	return toolchain.AndroidOptions{
		SDKPath:   a.SDK,
		LookupEnv: func(string) (string, bool) { return "", false },
		GOOS:      "linux",
	}
}

// Discover runs toolchain discovery against the fixture.
func (a *Android) Discover(t testing.TB) *toolchain.Android {
	t.Helper()
	tc, err := toolchain.DiscoverAndroid(a.Options())
	if err != nil {
		t.Fatalf("discover fake android toolchain: %v", err)
	}
	return tc
}

// NewXcode creates a fake Xcode developer directory.
func NewXcode(t testing.TB) *Xcode {
	t.Helper()
	x := &Xcode{DeveloperDir: t.TempDir(), SDKVersion: "17.5"}
	for _, platform := range []string{"iPhoneOS", "iPhoneSimulator"} {
		dir := filepath.Join(x.DeveloperDir, "Platforms", platform+".platform", "Developer", "SDKs", platform+x.SDKVersion+".sdk")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return x
}

// Discover runs Xcode discovery against the fixture.
func (x *Xcode) Discover(t testing.TB) *toolchain.Apple {
	t.Helper()
	tc, err := toolchain.DiscoverApple(t.Context(), toolchain.AppleOptions{
		DeveloperDir: x.DeveloperDir,
		LookupEnv:    func(string) (string, bool) { return "", false },
	})
	if err != nil {
		t.Fatalf("discover fake xcode: %v", err)
	}
	return tc
}

// Touch creates an empty file and its parent directories.
func Touch(t testing.TB, path string) {
	t.Helper()
	WriteFile(t, path, "")
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
