// SPDX-License-Identifier: MPL-2.0

package closure

import (
	"bufio"
	"context"
	"strings"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
)

// ReadelfIntrospector extracts NEEDED entries from `llvm-readelf -d` output.
type ReadelfIntrospector struct {
	runner toolexec.Runner
	path   string
}

// NewReadelfIntrospector uses the readelf binary at path.
func NewReadelfIntrospector(runner toolexec.Runner, path string) *ReadelfIntrospector {
	return &ReadelfIntrospector{runner: runner, path: path}
}

// Needed implements Introspector.
func (r *ReadelfIntrospector) Needed(ctx context.Context, path string) ([]string, error) {
	res, err := r.runner.Run(ctx, tools.Readelf{Path: r.path, File: path}.Command())
	if err != nil {
		return nil, err
	}
	return ParseNeeded(res.Stdout), nil
}

// ParseNeeded returns the bracketed library names of every line containing
// "(NEEDED)", in order:
//
//	0x0000000000000001 (NEEDED)  Shared library: [liblog.so]
func ParseNeeded(out string) []string {
	var needed []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "(NEEDED)") {
			continue
		}
		start := strings.IndexByte(line, '[')
		end := strings.LastIndexByte(line, ']')
		if start < 0 || end <= start+1 {
			continue
		}
		needed = append(needed, line[start+1:end])
	}
	return needed
}
