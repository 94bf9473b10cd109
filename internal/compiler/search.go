// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var linkSearchPrefixes = []string{"cargo:rustc-link-search=", "cargo::rustc-link-search="}

var linkSearchKinds = []string{"dependency", "crate", "native", "framework", "all"}

// LinkSearchPaths collects the rustc-link-search directories printed by the
// build scripts of all crates compiled into outDir (build/*/output). The
// result is deduplicated and keeps first-seen order.
func LinkSearchPaths(outDir string) ([]string, error) {
	outputs, err := filepath.Glob(filepath.Join(outDir, "build", "*", "output"))
	if err != nil {
		return nil, err
	}
	slices.Sort(outputs)

	var paths []string
	for _, file := range outputs {
		found, err := parseBuildOutput(file)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			if !slices.Contains(paths, p) {
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}

func parseBuildOutput(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("read build script output: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		for _, prefix := range linkSearchPrefixes {
			value, ok := strings.CutPrefix(line, prefix)
			if !ok {
				continue
			}
			if kind, path, hasKind := strings.Cut(value, "="); hasKind && slices.Contains(linkSearchKinds, kind) {
				value = path
			}
			if value != "" {
				out = append(out, value)
			}
		}
	}
	return out, sc.Err()
}
