// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/testutil"
	"github.com/mobundle/mobundle/internal/testutil/toolexectest"
)

// fakeAndroid lays out a minimal SDK with a side-by-side NDK.
type fakeAndroid struct {
	sdk string
	ndk string
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func newFakeAndroid(t *testing.T) fakeAndroid {
	t.Helper()
	sdk := t.TempDir()
	for _, bt := range []string{"30.0.3", "34.0.0", "docs", "9.0.0"} {
		mkdir(t, filepath.Join(sdk, "build-tools", bt))
	}
	touch(t, filepath.Join(sdk, "build-tools", "9.0.0", "aapt2"))
	touch(t, filepath.Join(sdk, "platforms", "android-33", "android.jar"))
	mkdir(t, filepath.Join(sdk, "platforms", "android-34"))
	mkdir(t, filepath.Join(sdk, "platforms", "android-preview"))

	ndk := filepath.Join(sdk, "ndk", "25.2.9519653")
	mkdir(t, filepath.Join(sdk, "ndk", "23.1.7779620"))
	mkdir(t, ndk)
	if err := os.WriteFile(filepath.Join(ndk, "source.properties"),
		[]byte("Pkg.Desc = Android NDK\nPkg.Revision = 25.2.9519653\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := filepath.Join(ndk, "toolchains", "llvm", "prebuilt", "linux-x86_64", "sysroot", "usr", "lib", "aarch64-linux-android")
	touch(t, filepath.Join(lib, "libc++_shared.so"))
	touch(t, filepath.Join(lib, "21", "libc.so"))
	touch(t, filepath.Join(lib, "21", "liblog.so"))
	touch(t, filepath.Join(lib, "21", "crtbegin_so.o"))
	touch(t, filepath.Join(lib, "26", "libaaudio.so"))
	touch(t, filepath.Join(ndk, "toolchains", "llvm", "prebuilt", "linux-x86_64", "bin", "aarch64-linux-android21-clang"))
	return fakeAndroid{sdk: sdk, ndk: ndk}
}

func TestDiscoverAndroid(t *testing.T) {
	t.Parallel()

	fake := newFakeAndroid(t)
	a, err := DiscoverAndroid(AndroidOptions{
		LookupEnv: testutil.MapEnv(map[string]string{"ANDROID_HOME": fake.sdk}),
		GOOS:      "linux",
	})
	if err != nil {
		t.Fatalf("DiscoverAndroid: %v", err)
	}

	// Lexicographic, not numeric: "9.0.0" > "34.0.0".
	if got := filepath.Base(a.BuildToolsDir()); got != "9.0.0" {
		t.Errorf("build-tools = %q, want 9.0.0", got)
	}
	if a.NDK().Root != fake.ndk {
		t.Errorf("NDK root = %q, want newest side-by-side %q", a.NDK().Root, fake.ndk)
	}
	if a.NDKBuildTag() != 9519653 {
		t.Errorf("NDKBuildTag() = %d", a.NDKBuildTag())
	}
	if !slices.Equal(a.SDK().Levels, []int{33, 34}) {
		t.Errorf("SDK levels = %v", a.SDK().Levels)
	}
	if n, _ := a.HighestPlatform(); n != 34 {
		t.Errorf("HighestPlatform() = %d", n)
	}
	if _, err := a.BuildTool("aapt2"); err != nil {
		t.Errorf("BuildTool(aapt2): %v", err)
	}
	if _, err := a.AndroidJar(34); !errors.Is(err, ErrNotFound) {
		t.Errorf("AndroidJar(34) error = %v, want ErrNotFound", err)
	}
}

func TestDiscoverAndroidEnvPriority(t *testing.T) {
	t.Parallel()

	fake := newFakeAndroid(t)
	other := t.TempDir()
	_, err := DiscoverAndroid(AndroidOptions{
		LookupEnv: testutil.MapEnv(map[string]string{
			"ANDROID_SDK_ROOT": filepath.Join(other, "missing"),
			"ANDROID_HOME":     fake.sdk,
		}),
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Component != ComponentSDK {
		t.Fatalf("ANDROID_SDK_ROOT must win even when invalid; got %v", err)
	}
}

func TestDiscoverAndroidMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(t *testing.T) AndroidOptions
		component Component
	}{
		{
			name:      "no sdk configured",
			setup:     func(*testing.T) AndroidOptions { return AndroidOptions{LookupEnv: testutil.MapEnv(nil)} },
			component: ComponentSDK,
		},
		{
			name: "no build-tools",
			setup: func(t *testing.T) AndroidOptions {
				return AndroidOptions{SDKPath: t.TempDir(), LookupEnv: testutil.MapEnv(nil)}
			},
			component: ComponentBuildTools,
		},
		{
			name: "no ndk",
			setup: func(t *testing.T) AndroidOptions {
				sdk := t.TempDir()
				mkdir(t, filepath.Join(sdk, "build-tools", "34.0.0"))
				return AndroidOptions{SDKPath: sdk, LookupEnv: testutil.MapEnv(nil)}
			},
			component: ComponentNDK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := DiscoverAndroid(tt.setup(t))
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("error = %v, want ErrNotFound", err)
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) || nf.Component != tt.component {
				t.Errorf("component = %v, want %v", nf, tt.component)
			}
		})
	}
}

func TestNDKBundlePreferredOverSideBySide(t *testing.T) {
	t.Parallel()

	fake := newFakeAndroid(t)
	bundle := filepath.Join(fake.sdk, "ndk-bundle")
	mkdir(t, filepath.Join(bundle, "toolchains", "llvm", "prebuilt", "darwin-x86_64"))
	if err := os.WriteFile(filepath.Join(bundle, "source.properties"), []byte("Pkg.Revision = 21.4.7075529\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := DiscoverAndroid(AndroidOptions{SDKPath: fake.sdk, LookupEnv: testutil.MapEnv(nil), GOOS: "darwin"})
	if err != nil {
		t.Fatalf("DiscoverAndroid: %v", err)
	}
	if a.NDK().Root != bundle {
		t.Errorf("NDK root = %q, want %q", a.NDK().Root, bundle)
	}
	if a.NDKBuildTag() != 7075529 {
		t.Errorf("NDKBuildTag() = %d", a.NDKBuildTag())
	}
}

func TestSysrootAndSystemLibraries(t *testing.T) {
	t.Parallel()

	fake := newFakeAndroid(t)
	a, err := DiscoverAndroid(AndroidOptions{SDKPath: fake.sdk, NDKPath: fake.ndk, LookupEnv: testutil.MapEnv(nil), GOOS: "linux"})
	if err != nil {
		t.Fatal(err)
	}
	arm64, _ := target.FromABI(target.Android, "arm64-v8a")

	dir, level, err := a.SysrootPlatformLibDir(arm64, 24)
	if err != nil {
		t.Fatalf("SysrootPlatformLibDir: %v", err)
	}
	if level != 21 || filepath.Base(dir) != "21" {
		t.Errorf("level = %d (%s), want downward fallback to 21", level, dir)
	}

	libs, err := a.SystemLibraries(arm64, 24)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(libs, []string{"libc.so", "liblog.so"}) {
		t.Errorf("SystemLibraries = %v", libs)
	}

	if _, err := a.RuntimeLibraryPath(arm64); err != nil {
		t.Errorf("RuntimeLibraryPath: %v", err)
	}
	if _, err := a.Clang(arm64, 21); err != nil {
		t.Errorf("Clang: %v", err)
	}

	x86, _ := target.FromABI(target.Android, "x86")
	if _, _, err := a.SysrootPlatformLibDir(x86, 21); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing sysroot error = %v, want ErrNotFound", err)
	}
}

func TestSelectPlatformLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		available []int
		requested int
		want      int
		wantOK    bool
	}{
		{"exact", []int{21, 24, 26}, 24, 24, true},
		{"downward first", []int{21, 26}, 24, 21, true},
		{"upward when nothing below", []int{26, 30}, 24, 26, true},
		{"none", nil, 24, 0, false},
		{"level one", []int{1}, 5, 1, true},
		{"above range clamps", []int{99}, 150, 99, true},
		{"nearest below the request", []int{21, 24, 29}, 23, 21, true},
		{"request above every level", []int{21, 24, 29}, 30, 29, true},
		{"request below every level", []int{21, 24, 29}, 19, 21, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := SelectPlatformLevel(tt.available, tt.requested)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("SelectPlatformLevel(%v, %d) = (%d, %v), want (%d, %v)",
					tt.available, tt.requested, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseProperties(t *testing.T) {
	t.Parallel()

	props, err := ParseProperties(strings.NewReader("# comment\nPkg.Desc = Android NDK\n\nPkg.Revision=26.1.10909125-beta1\nbroken line\n"))
	if err != nil {
		t.Fatal(err)
	}
	if props["Pkg.Revision"] != "26.1.10909125-beta1" || props["Pkg.Desc"] != "Android NDK" {
		t.Errorf("props = %v", props)
	}
	if len(props) != 2 {
		t.Errorf("expected 2 entries, got %d", len(props))
	}
}

func TestHostTag(t *testing.T) {
	t.Parallel()

	for goos, want := range map[string]string{"linux": "linux-x86_64", "darwin": "darwin-x86_64", "windows": "windows-x86_64"} {
		if got := HostTag(goos); got != want {
			t.Errorf("HostTag(%q) = %q, want %q", goos, got, want)
		}
	}
}

func TestDiscoverApple(t *testing.T) {
	t.Parallel()

	dev := t.TempDir()
	sdks := filepath.Join(dev, "Platforms", "iPhoneOS.platform", "Developer", "SDKs")
	for _, name := range []string{"iPhoneOS.sdk", "iPhoneOS16.4.sdk", "iPhoneOS17.5.sdk", "iPhoneOS17.10.sdk"} {
		mkdir(t, filepath.Join(sdks, name))
	}

	a, err := DiscoverApple(t.Context(), AppleOptions{LookupEnv: testutil.MapEnv(map[string]string{"DEVELOPER_DIR": dev})})
	if err != nil {
		t.Fatalf("DiscoverApple: %v", err)
	}
	info, err := a.SDK(false)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(info.Root) != "iPhoneOS17.10.sdk" {
		t.Errorf("SDK = %q, want semantic max iPhoneOS17.10.sdk", info.Root)
	}
	if _, err := a.SDK(true); !errors.Is(err, ErrNotFound) {
		t.Errorf("simulator SDK error = %v, want ErrNotFound", err)
	}
}

func TestDiscoverAppleXcrunFallback(t *testing.T) {
	t.Parallel()

	dev := t.TempDir()
	sdk := filepath.Join(dev, "Platforms", "iPhoneOS.platform", "Developer", "SDKs", "iPhoneOS18.0.sdk")
	mkdir(t, sdk)

	runner := toolexectest.NewRunner().Handle("xcrun", toolexectest.Stdout(sdk+"\n"))
	a, err := DiscoverApple(context.Background(), AppleOptions{
		DeveloperDir: filepath.Join(dev, "missing"),
		LookupEnv:    testutil.MapEnv(nil),
		Runner:       runner,
	})
	if err != nil {
		t.Fatalf("DiscoverApple: %v", err)
	}
	if a.DeveloperDir() != dev {
		t.Errorf("DeveloperDir() = %q, want %q", a.DeveloperDir(), dev)
	}
}

func TestDiscoverAppleEnvOverridesConfig(t *testing.T) {
	t.Parallel()

	fromEnv, fromConfig := t.TempDir(), t.TempDir()
	for _, dev := range []string{fromEnv, fromConfig} {
		mkdir(t, filepath.Join(dev, "Platforms", "iPhoneOS.platform", "Developer", "SDKs", "iPhoneOS17.5.sdk"))
	}

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"env wins", map[string]string{"DEVELOPER_DIR": fromEnv}, fromEnv},
		{"config without env", nil, fromConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := DiscoverApple(t.Context(), AppleOptions{
				DeveloperDir: fromConfig,
				LookupEnv:    testutil.MapEnv(tt.env),
			})
			if err != nil {
				t.Fatalf("DiscoverApple: %v", err)
			}
			if a.DeveloperDir() != tt.want {
				t.Errorf("DeveloperDir() = %q, want %q", a.DeveloperDir(), tt.want)
			}
		})
	}
}
