// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

type (
	// Assembler builds APKs, app bundles and iOS application archives.
	Assembler struct {
		runner     toolexec.Runner
		zipalign   string
		java       string
		bundletool string
		lipo       string
		logger     *log.Logger
	}

	// Option configures an Assembler.
	Option func(*Assembler)

	// APKRequest merges libraries into a linked base package and aligns it.
	APKRequest struct {
		// Base is the aapt2 link output.
		Base      string
		Libraries []closure.Library
		// WorkDir holds the lib/<abi>/ mirror and the unaligned package.
		WorkDir string
		// Output is the aligned APK path.
		Output string
	}

	// AABRequest turns a proto-format base package into an app bundle.
	AABRequest struct {
		Base      string
		Libraries []closure.Library
		WorkDir   string
		Output    string
	}

	// AppRequest lays out an iOS .app folder.
	AppRequest struct {
		// Name is the bundle folder name without ".app".
		Name string
		// Executable is the CFBundleExecutable file name.
		Executable string
		// Binaries are the per-architecture executables; several are merged
		// with lipo.
		Binaries []string
		// InfoPlist is an encoded Info.plist file to copy into the bundle.
		InfoPlist string
		// Resources are copied into the bundle root; Assets into assets/.
		Resources string
		Assets    string
		OutDir    string
	}

	// Stage is one recorded transition of an artifact.
	Stage struct {
		Name string
		Path string
	}
)

// WithZipalign sets the zipalign binary.
func WithZipalign(p string) Option { return func(a *Assembler) { a.zipalign = p } }

// WithBundletool sets the java binary and the bundletool jar.
func WithBundletool(java, jar string) Option {
	return func(a *Assembler) { a.java, a.bundletool = java, jar }
}

// WithLipo sets the lipo binary.
func WithLipo(p string) Option { return func(a *Assembler) { a.lipo = p } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(a *Assembler) { a.logger = l } }

// New creates an Assembler.
func New(runner toolexec.Runner, opts ...Option) *Assembler {
	a := &Assembler{runner: runner, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// APK runs Unaligned -> Merged -> Aligned and returns the recorded stages.
func (a *Assembler) APK(ctx context.Context, req APKRequest) ([]Stage, error) {
	if err := requireFile("linked base package", req.Base); err != nil {
		return nil, err
	}
	libEntries, err := mirrorLibraries(req.Libraries, filepath.Join(req.WorkDir, "lib"))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, err
	}
	merged := filepath.Join(req.WorkDir, strings.TrimSuffix(filepath.Base(req.Output), ".apk")+".unaligned.apk")
	a.logger.Debug("merging libraries", "count", len(libEntries), "apk", merged)
	if err := rewriteArchive(req.Base, merged, libEntries); err != nil {
		return nil, fmt.Errorf("merge libraries: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return nil, err
	}
	cmd := tools.Zipalign{Path: a.zipalign, Input: merged, Output: req.Output}.Command()
	if _, err := a.runner.Run(ctx, cmd); err != nil {
		return nil, err
	}
	if err := requireFile("aligned package", req.Output); err != nil {
		return nil, err
	}
	return []Stage{
		{Name: "unaligned", Path: req.Base},
		{Name: "merged", Path: merged},
		{Name: "aligned", Path: req.Output},
	}, nil
}

// AAB runs BasePackage -> ExtractedTree -> ModuleZip -> Bundle.
func (a *Assembler) AAB(ctx context.Context, req AABRequest) ([]Stage, error) {
	if a.bundletool == "" {
		return nil, &types.MissingInputError{Kind: "bundletool jar", Path: "(not configured)"}
	}
	if err := requireFile("linked base package", req.Base); err != nil {
		return nil, err
	}

	extracted := filepath.Join(req.WorkDir, "base")
	if err := os.RemoveAll(extracted); err != nil {
		return nil, err
	}
	if err := extractArchive(req.Base, extracted); err != nil {
		return nil, fmt.Errorf("extract base package: %w", err)
	}

	files, err := treeEntries(extracted, "")
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].Name = moduleEntryName(files[i].Name)
	}
	libEntries, err := mirrorLibraries(req.Libraries, filepath.Join(req.WorkDir, "lib"))
	if err != nil {
		return nil, err
	}
	module := filepath.Join(req.WorkDir, "base.zip")
	if err := writeArchive(module, append(files, libEntries...)); err != nil {
		return nil, fmt.Errorf("write module zip: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return nil, err
	}
	cmd := tools.Bundletool{Java: a.java, Jar: a.bundletool, Modules: []string{module}, Output: req.Output}.Command()
	if _, err := a.runner.Run(ctx, cmd); err != nil {
		return nil, err
	}
	if err := requireFile("app bundle", req.Output); err != nil {
		return nil, err
	}
	return []Stage{
		{Name: "base", Path: req.Base},
		{Name: "extracted", Path: extracted},
		{Name: "module", Path: module},
		{Name: "bundle", Path: req.Output},
	}, nil
}

// moduleEntryName maps an aapt2 proto-format package entry to its location
// in a bundletool module.
func moduleEntryName(name string) string {
	switch {
	case name == "AndroidManifest.xml":
		return "manifest/AndroidManifest.xml"
	case name == "resources.pb",
		strings.HasPrefix(name, "res/"),
		strings.HasPrefix(name, "assets/"),
		strings.HasPrefix(name, "lib/"),
		strings.HasPrefix(name, "dex/"):
		return name
	default:
		return path.Join("root", name)
	}
}

// App creates <OutDir>/<Name>.app with the executable, Info.plist,
// resources and assets. It returns the bundle path.
func (a *Assembler) App(ctx context.Context, req AppRequest) (string, error) {
	if len(req.Binaries) == 0 {
		return "", &types.MissingInputError{Kind: "executable", Path: req.Executable}
	}
	for _, b := range req.Binaries {
		if err := requireFile("executable", b); err != nil {
			return "", err
		}
	}
	if err := requireFile("Info.plist", req.InfoPlist); err != nil {
		return "", err
	}

	app := filepath.Join(req.OutDir, req.Name+".app")
	if err := os.RemoveAll(app); err != nil {
		return "", err
	}
	if err := os.MkdirAll(app, 0o755); err != nil {
		return "", err
	}

	exe := filepath.Join(app, req.Executable)
	if len(req.Binaries) == 1 {
		if err := copyFile(req.Binaries[0], exe); err != nil {
			return "", fmt.Errorf("copy executable: %w", err)
		}
	} else {
		cmd := tools.LipoCreate{Path: a.lipo, Inputs: req.Binaries, Output: exe}.Command()
		if _, err := a.runner.Run(ctx, cmd); err != nil {
			return "", err
		}
		if err := requireFile("universal executable", exe); err != nil {
			return "", err
		}
	}
	if err := os.Chmod(exe, 0o755); err != nil {
		return "", err
	}

	if err := copyFile(req.InfoPlist, filepath.Join(app, "Info.plist")); err != nil {
		return "", err
	}
	if req.Resources != "" {
		if err := requireDir("resources directory", req.Resources); err != nil {
			return "", err
		}
		if err := copyTree(req.Resources, app); err != nil {
			return "", fmt.Errorf("copy resources: %w", err)
		}
	}
	if req.Assets != "" {
		if err := requireDir("assets directory", req.Assets); err != nil {
			return "", err
		}
		if err := copyTree(req.Assets, filepath.Join(app, "assets")); err != nil {
			return "", fmt.Errorf("copy assets: %w", err)
		}
	}
	return app, nil
}

// IPA copies the (already signed) app into Payload/ and zips it to output.
// The Payload directory is removed whether or not zipping succeeds.
func (a *Assembler) IPA(app, output string) (_ []Stage, err error) {
	if err := requireDir("application bundle", app); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, err
	}

	payload := filepath.Join(filepath.Dir(output), "Payload")
	if err := os.RemoveAll(payload); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(payload); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := copyTree(app, filepath.Join(payload, filepath.Base(app))); err != nil {
		return nil, fmt.Errorf("copy payload: %w", err)
	}
	entries, err := treeEntries(payload, "Payload")
	if err != nil {
		return nil, err
	}
	if err := writeArchive(output, entries); err != nil {
		return nil, fmt.Errorf("write ipa: %w", err)
	}
	return []Stage{
		{Name: "app", Path: app},
		{Name: "payload", Path: payload},
		{Name: "ipa", Path: output},
	}, nil
}

// mirrorLibraries copies each library to <stage>/<abi>/<name> and returns
// the matching lib/<abi>/<name> archive entries in input order.
func mirrorLibraries(libs []closure.Library, stage string) ([]entry, error) {
	if err := os.RemoveAll(stage); err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(libs))
	for _, lib := range libs {
		abi := lib.Target.ABI()
		dst := filepath.Join(stage, abi, lib.Name)
		if err := copyFile(lib.Path, dst); err != nil {
			if os.IsNotExist(err) {
				return nil, &types.MissingInputError{Kind: "native library", Path: lib.Path}
			}
			return nil, fmt.Errorf("mirror %s: %w", lib.Name, err)
		}
		entries = append(entries, entry{Name: path.Join("lib", abi, lib.Name), Source: dst})
	}
	return entries, nil
}

func requireFile(kind, p string) error {
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		return &types.MissingInputError{Kind: kind, Path: p}
	}
	return nil
}

func requireDir(kind, p string) error {
	if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
		return &types.MissingInputError{Kind: kind, Path: p}
	}
	return nil
}
