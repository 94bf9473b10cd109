// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// revisionKey is the source.properties entry holding the NDK version.
const revisionKey = "Pkg.Revision"

// ParseProperties reads a Java-style `key = value` properties file. Blank
// lines and lines starting with '#' or '!' are ignored.
func ParseProperties(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return props, sc.Err()
}

// ReadNDKRevision parses the Pkg.Revision entry of <ndk>/source.properties.
// For "25.2.9519653" the build tag is 9519653 (the patch component).
func ReadNDKRevision(ndkRoot string) (*semver.Version, error) {
	path := filepath.Join(ndkRoot, "source.properties")
	f, err := os.Open(path)
	if err != nil {
		return nil, &NotFoundError{Component: ComponentNDK, Path: path}
	}
	defer f.Close()

	props, err := ParseProperties(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw, ok := props[revisionKey]
	if !ok {
		return nil, fmt.Errorf("%s: missing %s", path, revisionKey)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %s %q: %w", path, revisionKey, raw, err)
	}
	return v, nil
}
