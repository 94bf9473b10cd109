// SPDX-License-Identifier: MPL-2.0

package resource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

type (
	// Packager runs aapt2.
	Packager struct {
		runner toolexec.Runner
		aapt2  string
		logger *log.Logger
	}

	// Option configures a Packager.
	Option func(*Packager)

	// CompileResult lists the .flat files for a resource directory.
	CompileResult struct {
		// Flats are all compiled outputs in stable (path) order.
		Flats []string
		// Compiled counts the files actually recompiled this run.
		Compiled int
	}

	// LinkRequest describes an aapt2 link.
	LinkRequest struct {
		Manifest   string
		AndroidJar string
		Output     string
		Flats      []string
		// AssetsDir is optional; when set it must exist.
		AssetsDir string
		// Bundle selects the protobuf format bundletool requires.
		Bundle bool
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(p *Packager) { p.logger = l } }

// New creates a Packager using the aapt2 binary at aapt2Path.
func New(runner toolexec.Runner, aapt2Path string, opts ...Option) *Packager {
	p := &Packager{runner: runner, aapt2: aapt2Path, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile compiles every file under resDir/<type>/ into outDir, skipping
// files whose fingerprint and .flat output are unchanged. An empty resDir
// means the project has no resources.
func (p *Packager) Compile(ctx context.Context, resDir, outDir string) (*CompileResult, error) {
	res := &CompileResult{}
	if resDir == "" {
		return res, nil
	}
	if fi, err := os.Stat(resDir); err != nil || !fi.IsDir() {
		return nil, &types.MissingInputError{Kind: "resource directory", Path: resDir}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	files, err := listResources(resDir)
	if err != nil {
		return nil, err
	}

	prev := loadState(outDir)
	next := &state{Version: stateVersion, Files: make(map[string]entry, len(files))}

	for _, rel := range files {
		src := filepath.Join(resDir, rel)
		hash, err := Fingerprint(src)
		if err != nil {
			return nil, err
		}
		flat := filepath.Join(outDir, FlatName(rel))

		if old, ok := prev.Files[rel]; !ok || old.Hash != hash || !exists(flat) {
			p.logger.Debug("aapt2 compile", "resource", rel)
			cmd := tools.Aapt2Compile{Path: p.aapt2, Input: src, OutDir: outDir}.Command()
			if _, err := p.runner.Run(ctx, cmd); err != nil {
				return nil, err
			}
			res.Compiled++
		}
		next.Files[rel] = entry{Hash: hash, Flat: filepath.Base(flat)}
		res.Flats = append(res.Flats, flat)
	}

	// Drop outputs of resources that no longer exist.
	for rel, old := range prev.Files {
		if _, ok := next.Files[rel]; !ok {
			_ = os.Remove(filepath.Join(outDir, old.Flat))
		}
	}
	if err := next.save(outDir); err != nil {
		return nil, err
	}
	return res, nil
}

// Link runs aapt2 link and returns req.Output.
func (p *Packager) Link(ctx context.Context, req LinkRequest) (string, error) {
	if req.AssetsDir != "" {
		if fi, err := os.Stat(req.AssetsDir); err != nil || !fi.IsDir() {
			return "", &types.MissingInputError{Kind: "assets directory", Path: req.AssetsDir}
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", err
	}
	cmd := tools.Aapt2Link{
		Path:           p.aapt2,
		Manifest:       req.Manifest,
		AndroidJar:     req.AndroidJar,
		Output:         req.Output,
		Flats:          req.Flats,
		AssetsDir:      req.AssetsDir,
		ProtoFormat:    req.Bundle,
		AutoAddOverlay: len(req.Flats) > 0,
	}.Command()
	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return "", err
	}
	if !exists(req.Output) {
		return "", &types.MissingInputError{Kind: "linked base package", Path: req.Output}
	}
	return req.Output, nil
}

// FlatName returns the file name aapt2 compile produces for a resource at
// <type>/<file> relative to the res directory.
func FlatName(rel string) string {
	dir, file := filepath.Split(filepath.ToSlash(rel))
	dir = strings.TrimSuffix(filepath.ToSlash(dir), "/")
	if strings.HasPrefix(dir, "values") && strings.HasSuffix(file, ".xml") {
		return dir + "_" + strings.TrimSuffix(file, ".xml") + ".arsc.flat"
	}
	return dir + "_" + file + ".flat"
}

// listResources returns <type>/<file> paths under resDir, sorted. Hidden
// entries are ignored.
func listResources(resDir string) ([]string, error) {
	typeDirs, err := os.ReadDir(resDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, td := range typeDirs {
		if !td.IsDir() || strings.HasPrefix(td.Name(), ".") {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(resDir, td.Name()))
		if err != nil {
			return nil, fmt.Errorf("read resource directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			out = append(out, filepath.Join(td.Name(), e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}
