// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrNotFound is the sentinel error wrapped by NotFoundError.
var ErrNotFound = errors.New("toolchain component not found")

type (
	// Component names the part of a toolchain that could not be located.
	Component string

	// LookupEnvFunc has the signature of os.LookupEnv.
	LookupEnvFunc func(key string) (string, bool)

	// Info describes one discovered installation.
	Info struct {
		// Root is the installation directory.
		Root string
		// Version is the resolved installation version, if known.
		Version *semver.Version
		// Levels lists the available platform/API levels in ascending order.
		Levels []int
	}

	// NotFoundError reports a required toolchain directory or file that does
	// not exist.
	NotFoundError struct {
		Component Component
		Path      string
		// Hint lists what was consulted, e.g. environment variable names.
		Hint string
	}
)

const (
	ComponentSDK        Component = "Android SDK"
	ComponentNDK        Component = "Android NDK"
	ComponentBuildTools Component = "Android SDK build-tools"
	ComponentPlatform   Component = "Android SDK platform"
	ComponentSysroot    Component = "NDK sysroot"
	ComponentTool       Component = "tool"
	ComponentXcode      Component = "Xcode"
	ComponentAppleSDK   Component = "iOS SDK"
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s not found", e.Component)
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// HighestLevel returns the largest available level, or 0 when none exist.
func (i Info) HighestLevel() int {
	if len(i.Levels) == 0 {
		return 0
	}
	return i.Levels[len(i.Levels)-1]
}

// VersionString renders Version, or "unknown".
func (i Info) VersionString() string {
	if i.Version == nil {
		return "unknown"
	}
	return i.Version.Original()
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func requireDir(c Component, path string) error {
	if !isDir(path) {
		return &NotFoundError{Component: c, Path: path}
	}
	return nil
}

func requireFile(c Component, path string) (string, error) {
	if !isFile(path) {
		return "", &NotFoundError{Component: c, Path: path}
	}
	return path, nil
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(lookup LookupEnvFunc, keys ...string) (string, string) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return filepath.Clean(v), k
		}
	}
	return "", ""
}

// maxVersionDir returns the entry of dir with the greatest semantic version
// after trimming prefix and suffix from its name. Entries that do not parse
// are ignored.
func maxVersionDir(dir, prefix, suffix string) (string, *semver.Version) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil
	}
	var (
		best    string
		bestVer *semver.Version
	)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		v, err := semver.NewVersion(strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix))
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = name, v
		}
	}
	return best, bestVer
}

// numericDirs lists the subdirectories of dir whose name (after trimming
// prefix) is a positive integer, in ascending order.
func numericDirs(dir, prefix string) []int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
