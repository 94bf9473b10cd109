// SPDX-License-Identifier: MPL-2.0

package tools

import (
	"strings"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/pkg/types"
)

// CargoBuild is `cargo build` for one target triple.
type CargoBuild struct {
	// Path is the cargo binary; empty means "cargo" from PATH.
	Path              string
	Triple            string
	Profile           types.Profile
	ManifestPath      string
	TargetDir         string
	Package           string
	Features          []string
	NoDefaultFeatures bool
	AllFeatures       bool
	Lib               bool
	Bin               string
	Verbose           bool
	ExtraArgs         []string
	Env               map[string]string
	Dir               string
}

// Command renders the cargo invocation.
func (c CargoBuild) Command() toolexec.Command {
	args := []string{"build", "--target", c.Triple}
	args = append(args, c.Profile.CargoArgs()...)
	if c.ManifestPath != "" {
		args = append(args, "--manifest-path", c.ManifestPath)
	}
	if c.TargetDir != "" {
		args = append(args, "--target-dir", c.TargetDir)
	}
	if c.Package != "" {
		args = append(args, "--package", c.Package)
	}
	if c.Lib {
		args = append(args, "--lib")
	}
	if c.Bin != "" {
		args = append(args, "--bin", c.Bin)
	}
	if len(c.Features) > 0 {
		args = append(args, "--features", strings.Join(c.Features, ","))
	}
	if c.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if c.AllFeatures {
		args = append(args, "--all-features")
	}
	if c.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, c.ExtraArgs...)
	return toolexec.Command{Name: orDefault(c.Path, "cargo"), Args: args, Env: c.Env, Dir: c.Dir}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
