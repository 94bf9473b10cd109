// SPDX-License-Identifier: MPL-2.0

package tools

import "github.com/mobundle/mobundle/internal/toolexec"

type (
	// LipoCreate merges per-architecture binaries into one universal binary.
	LipoCreate struct {
		Path   string
		Inputs []string
		Output string
	}

	// CodesignSign signs an application bundle in place.
	CodesignSign struct {
		Path         string
		Identity     string
		Entitlements string
		Bundle       string
	}

	// CodesignVerify verifies an application bundle signature.
	CodesignVerify struct {
		Path   string
		Bundle string
	}

	// XcrunShowSDKPath asks xcrun for the active SDK path.
	XcrunShowSDKPath struct {
		Path string
		SDK  string
	}
)

// Command renders `lipo -create <inputs> -output <out>`.
func (l LipoCreate) Command() toolexec.Command {
	args := append([]string{"-create"}, l.Inputs...)
	args = append(args, "-output", l.Output)
	return toolexec.Command{Name: orDefault(l.Path, "lipo"), Args: args}
}

// Command renders `codesign --force --sign`. An empty identity signs ad hoc.
func (c CodesignSign) Command() toolexec.Command {
	args := []string{"--force", "--sign", orDefault(c.Identity, "-"), "--timestamp=none"}
	if c.Entitlements != "" {
		args = append(args, "--entitlements", c.Entitlements)
	}
	args = append(args, c.Bundle)
	return toolexec.Command{Name: orDefault(c.Path, "codesign"), Args: args}
}

// Command renders `codesign --verify --deep --strict`.
func (c CodesignVerify) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(c.Path, "codesign"),
		Args: []string{"--verify", "--deep", "--strict", "--verbose=2", c.Bundle},
	}
}

// Command renders `xcrun --sdk <sdk> --show-sdk-path`.
func (x XcrunShowSDKPath) Command() toolexec.Command {
	return toolexec.Command{
		Name: orDefault(x.Path, "xcrun"),
		Args: []string{"--sdk", orDefault(x.SDK, "iphoneos"), "--show-sdk-path"},
	}
}
