// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/pkg/platform"
)

// RuntimeLibrary is the C++ runtime shipped with every Android package.
const RuntimeLibrary = "libc++_shared.so"

var (
	sdkEnvKeys = []string{"ANDROID_SDK_ROOT", "ANDROID_SDK_PATH", "ANDROID_HOME"}
	ndkEnvKeys = []string{"ANDROID_NDK_ROOT", "ANDROID_NDK_PATH", "ANDROID_NDK_HOME", "NDK_HOME"}
)

type (
	// AndroidOptions controls Android toolchain discovery. Explicit paths
	// override the environment.
	AndroidOptions struct {
		SDKPath   string
		NDKPath   string
		LookupEnv LookupEnvFunc
		// GOOS selects the host layout; defaults to runtime.GOOS.
		GOOS string
	}

	// Android is a discovered Android SDK + NDK pair.
	Android struct {
		sdk        Info
		ndk        Info
		buildTools string
		hostTag    string
		goos       string
	}
)

// DiscoverAndroid locates the SDK, its newest build-tools, and the NDK.
func DiscoverAndroid(opts AndroidOptions) (*Android, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	sdkRoot := filepath.Clean(opts.SDKPath)
	if opts.SDKPath == "" {
		sdkRoot, _ = firstEnv(lookup, sdkEnvKeys...)
	}
	if sdkRoot == "" {
		return nil, &NotFoundError{Component: ComponentSDK, Hint: "set " + strings.Join(sdkEnvKeys, ", ")}
	}
	if err := requireDir(ComponentSDK, sdkRoot); err != nil {
		return nil, err
	}

	buildTools, err := newestBuildTools(sdkRoot)
	if err != nil {
		return nil, err
	}

	ndkRoot, err := findNDK(opts.NDKPath, sdkRoot, lookup)
	if err != nil {
		return nil, err
	}
	ndkVersion, err := ReadNDKRevision(ndkRoot)
	if err != nil {
		return nil, err
	}

	a := &Android{
		sdk: Info{
			Root:   sdkRoot,
			Levels: numericDirs(filepath.Join(sdkRoot, "platforms"), "android-"),
		},
		ndk:        Info{Root: ndkRoot, Version: ndkVersion},
		buildTools: buildTools,
		hostTag:    HostTag(goos),
		goos:       goos,
	}
	if v, err := semver.NewVersion(filepath.Base(buildTools)); err == nil {
		a.sdk.Version = v
	}
	if err := requireDir(ComponentNDK, a.PrebuiltDir()); err != nil {
		return nil, err
	}
	return a, nil
}

// HostTag returns the NDK prebuilt directory name for the host OS. NDKs only
// ship x86_64 host binaries; Apple silicon runs them under Rosetta.
func HostTag(goos string) string {
	switch goos {
	case platform.Darwin:
		return "darwin-x86_64"
	case platform.Windows:
		return "windows-x86_64"
	default:
		return "linux-x86_64"
	}
}

// newestBuildTools picks the lexicographically greatest build-tools entry
// whose name starts with a digit.
func newestBuildTools(sdkRoot string) (string, error) {
	dir := filepath.Join(sdkRoot, "build-tools")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &NotFoundError{Component: ComponentBuildTools, Path: dir}
	}
	var best string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == "" || name[0] < '0' || name[0] > '9' {
			continue
		}
		if name > best {
			best = name
		}
	}
	if best == "" {
		return "", &NotFoundError{Component: ComponentBuildTools, Path: dir, Hint: "no versioned build-tools installed"}
	}
	return filepath.Join(dir, best), nil
}

func findNDK(explicit, sdkRoot string, lookup LookupEnvFunc) (string, error) {
	if explicit != "" {
		root := filepath.Clean(explicit)
		return root, requireDir(ComponentNDK, root)
	}
	if root, _ := firstEnv(lookup, ndkEnvKeys...); root != "" {
		return root, requireDir(ComponentNDK, root)
	}
	if bundle := filepath.Join(sdkRoot, "ndk-bundle"); isDir(bundle) {
		return bundle, nil
	}
	side := filepath.Join(sdkRoot, "ndk")
	if name, _ := maxVersionDir(side, "", ""); name != "" {
		return filepath.Join(side, name), nil
	}
	return "", &NotFoundError{
		Component: ComponentNDK,
		Path:      side,
		Hint:      "set " + strings.Join(ndkEnvKeys, ", ") + " or install an NDK side-by-side in the SDK",
	}
}

// SDK returns the SDK installation info. Levels are the installed android-N platforms.
func (a *Android) SDK() Info { return a.sdk }

// NDK returns the NDK installation info.
func (a *Android) NDK() Info { return a.ndk }

// BuildToolsDir returns the selected build-tools directory.
func (a *Android) BuildToolsDir() string { return a.buildTools }

// HostTag returns the prebuilt host directory name in use.
func (a *Android) HostTag() string { return a.hostTag }

// NDKBuildTag returns the patch component of the NDK revision.
func (a *Android) NDKBuildTag() uint64 {
	if a.ndk.Version == nil {
		return 0
	}
	return a.ndk.Version.Patch()
}

// HighestPlatform returns the newest installed SDK platform level.
func (a *Android) HighestPlatform() (int, error) {
	n := a.sdk.HighestLevel()
	if n == 0 {
		return 0, &NotFoundError{Component: ComponentPlatform, Path: filepath.Join(a.sdk.Root, "platforms")}
	}
	return n, nil
}

// AndroidJar returns platforms/android-<level>/android.jar.
func (a *Android) AndroidJar(level int) (string, error) {
	return requireFile(ComponentPlatform, filepath.Join(a.sdk.Root, "platforms", "android-"+strconv.Itoa(level), "android.jar"))
}

// BuildTool returns the path of an SDK build tool such as "aapt2",
// "zipalign" or "apksigner".
func (a *Android) BuildTool(name string) (string, error) {
	return requireFile(ComponentTool, filepath.Join(a.buildTools, a.buildToolName(name)))
}

// buildToolName maps a build tool to its file name; apksigner and d8 are
// batch wrappers on Windows.
func (a *Android) buildToolName(name string) string {
	if name == "apksigner" || name == "d8" {
		return platform.ToolName(a.goos, name, platform.BatchSuffix)
	}
	return platform.ToolName(a.goos, name, platform.ExeSuffix)
}

// PrebuiltDir returns <ndk>/toolchains/llvm/prebuilt/<host>.
func (a *Android) PrebuiltDir() string {
	return filepath.Join(a.ndk.Root, "toolchains", "llvm", "prebuilt", a.hostTag)
}

func (a *Android) binDir() string { return filepath.Join(a.PrebuiltDir(), "bin") }

// Clang returns the API-level-specific clang driver for t.
func (a *Android) Clang(t target.Target, api int) (string, error) {
	return a.clangDriver(t, api, "clang")
}

// ClangXX returns the API-level-specific clang++ driver for t.
func (a *Android) ClangXX(t target.Target, api int) (string, error) {
	return a.clangDriver(t, api, "clang++")
}

func (a *Android) clangDriver(t target.Target, api int, driver string) (string, error) {
	name := fmt.Sprintf("%s%d-%s", t.ClangTriple(), api, driver)
	return requireFile(ComponentTool, filepath.Join(a.binDir(), platform.ToolName(a.goos, name, platform.CmdSuffix)))
}

// LLVMTool returns an NDK binary utility such as "llvm-ar" or "llvm-readelf".
func (a *Android) LLVMTool(name string) (string, error) {
	return requireFile(ComponentTool, filepath.Join(a.binDir(), platform.ToolName(a.goos, name, platform.ExeSuffix)))
}

// SysrootLibDir returns sysroot/usr/lib/<sysroot-triple> for t.
func (a *Android) SysrootLibDir(t target.Target) string {
	return filepath.Join(a.PrebuiltDir(), "sysroot", "usr", "lib", t.SysrootTriple())
}

// PlatformLevels lists the API levels the NDK sysroot provides for t.
func (a *Android) PlatformLevels(t target.Target) []int {
	return numericDirs(a.SysrootLibDir(t), "")
}

// SysrootPlatformLibDir resolves the per-API sysroot library directory for
// t, falling back from minSDK as SelectPlatformLevel does. It returns the
// directory and the level actually chosen.
func (a *Android) SysrootPlatformLibDir(t target.Target, minSDK int) (string, int, error) {
	base := a.SysrootLibDir(t)
	level, ok := SelectPlatformLevel(a.PlatformLevels(t), minSDK)
	if !ok {
		return "", 0, &NotFoundError{
			Component: ComponentSysroot,
			Path:      base,
			Hint:      fmt.Sprintf("no platform level available near %d", minSDK),
		}
	}
	return filepath.Join(base, strconv.Itoa(level)), level, nil
}

// RuntimeLibraryPath returns the libc++_shared.so that ships with the NDK for t.
func (a *Android) RuntimeLibraryPath(t target.Target) (string, error) {
	return requireFile(ComponentSysroot, filepath.Join(a.SysrootLibDir(t), RuntimeLibrary))
}

// SystemLibraries returns the names of the shared objects the platform
// provides at runtime for t at minSDK (libc.so, liblog.so, ...). These are
// never packaged.
func (a *Android) SystemLibraries(t target.Target, minSDK int) ([]string, error) {
	dir, _, err := a.SysrootPlatformLibDir(t, minSDK)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &NotFoundError{Component: ComponentSysroot, Path: dir}
	}
	var libs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".so") {
			libs = append(libs, e.Name())
		}
	}
	slices.Sort(libs)
	return libs, nil
}
