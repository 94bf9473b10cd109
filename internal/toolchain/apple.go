// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
)

// DefaultDeveloperDir is the developer directory of a standard Xcode install.
const DefaultDeveloperDir = "/Applications/Xcode.app/Contents/Developer"

const (
	sdkDevice    = "iPhoneOS"
	sdkSimulator = "iPhoneSimulator"
)

type (
	// AppleOptions controls Xcode discovery.
	AppleOptions struct {
		DeveloperDir string
		LookupEnv    LookupEnvFunc
		// Runner, when set, is used to ask xcrun for the SDK path if the
		// developer directory cannot be found on disk.
		Runner toolexec.Runner
	}

	// Apple is a discovered Xcode developer directory with its iOS SDKs.
	Apple struct {
		developerDir string
		device       Info
		simulator    Info
	}
)

// DiscoverApple locates the Xcode developer directory (DEVELOPER_DIR, then
// opts.DeveloperDir, then the default install, then xcrun) and the newest
// device and simulator SDKs inside it.
func DiscoverApple(ctx context.Context, opts AppleOptions) (*Apple, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dev, _ := firstEnv(lookup, "DEVELOPER_DIR")
	if dev == "" {
		dev = opts.DeveloperDir
	}
	if dev == "" {
		dev = DefaultDeveloperDir
	}
	if !isDir(dev) && opts.Runner != nil {
		if sdk, err := xcrunSDKPath(ctx, opts.Runner, "iphoneos"); err == nil {
			// <dev>/Platforms/iPhoneOS.platform/Developer/SDKs/iPhoneOS.sdk
			dev = filepath.Clean(filepath.Join(sdk, "..", "..", "..", "..", ".."))
		}
	}
	if err := requireDir(ComponentXcode, dev); err != nil {
		return nil, &NotFoundError{Component: ComponentXcode, Path: dev, Hint: "set DEVELOPER_DIR or install Xcode"}
	}

	a := &Apple{developerDir: dev}
	a.device = newestSDK(dev, sdkDevice)
	a.simulator = newestSDK(dev, sdkSimulator)
	if a.device.Root == "" && a.simulator.Root == "" {
		return nil, &NotFoundError{Component: ComponentAppleSDK, Path: sdkDir(dev, sdkDevice)}
	}
	return a, nil
}

func sdkDir(dev, platform string) string {
	return filepath.Join(dev, "Platforms", platform+".platform", "Developer", "SDKs")
}

func newestSDK(dev, platform string) Info {
	dir := sdkDir(dev, platform)
	name, v := maxVersionDir(dir, platform, ".sdk")
	if name == "" {
		return Info{}
	}
	return Info{Root: filepath.Join(dir, name), Version: v}
}

func xcrunSDKPath(ctx context.Context, r toolexec.Runner, sdk string) (string, error) {
	res, err := r.Run(ctx, tools.XcrunShowSDKPath{SDK: sdk}.Command())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// DeveloperDir returns the Xcode developer directory.
func (a *Apple) DeveloperDir() string { return a.developerDir }

// SDK returns the device SDK info, or the simulator SDK when simulator is set.
func (a *Apple) SDK(simulator bool) (Info, error) {
	info, platform := a.device, sdkDevice
	if simulator {
		info, platform = a.simulator, sdkSimulator
	}
	if info.Root == "" {
		return Info{}, &NotFoundError{Component: ComponentAppleSDK, Path: sdkDir(a.developerDir, platform)}
	}
	return info, nil
}

// SDKVersion returns the version of the device SDK, or nil.
func (a *Apple) SDKVersion() *semver.Version { return a.device.Version }
