// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/toolexec"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

// libgccBuildTag is the last NDK build that still shipped libgcc. Newer NDKs
// only provide libunwind, which the Rust standard library does not link by
// default.
const libgccBuildTag = 7272597

var errNoToolchain = errors.New("no toolchain configured for platform")

type (
	// Request describes one per-target compilation.
	Request struct {
		Target            target.Target
		Profile           types.Profile
		ManifestPath      string
		TargetDir         string
		Package           string
		LibName           string
		BinName           string
		Features          []string
		NoDefaultFeatures bool
		AllFeatures       bool
		ExtraArgs         []string
		// MinSDK selects the Android clang driver API level.
		MinSDK int
		// DeploymentTarget is the minimum iOS version.
		DeploymentTarget string
	}

	// Output is the result of a successful compilation.
	Output struct {
		Target target.Target
		// Artifact is the compiled shared library (Android) or executable (Apple).
		Artifact string
		// OutDir is <target-dir>/<triple>/<profile-dir>.
		OutDir string
		// SearchPaths are the directories where dependencies of Artifact may
		// be found, in priority order.
		SearchPaths []string
	}

	// Driver runs cargo with the toolchain environment for each target.
	Driver struct {
		runner    toolexec.Runner
		android   *toolchain.Android
		apple     *toolchain.Apple
		cargo     string
		lookupEnv toolchain.LookupEnvFunc
		logger    *log.Logger
	}

	// Option configures a Driver.
	Option func(*Driver)
)

// WithAndroid enables Android targets.
func WithAndroid(a *toolchain.Android) Option { return func(d *Driver) { d.android = a } }

// WithApple enables Apple targets.
func WithApple(a *toolchain.Apple) Option { return func(d *Driver) { d.apple = a } }

// WithCargo overrides the cargo binary.
func WithCargo(path string) Option { return func(d *Driver) { d.cargo = path } }

// WithLookupEnv overrides how existing RUSTFLAGS are read.
func WithLookupEnv(fn toolchain.LookupEnvFunc) Option { return func(d *Driver) { d.lookupEnv = fn } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(d *Driver) { d.logger = l } }

// New creates a Driver.
func New(runner toolexec.Runner, opts ...Option) *Driver {
	d := &Driver{runner: runner, lookupEnv: os.LookupEnv, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compile runs one cargo build for req.Target and returns the artifact.
// A non-zero cargo exit is returned as-is; it is never retried.
func (d *Driver) Compile(ctx context.Context, req Request) (*Output, error) {
	var (
		env      map[string]string
		artifact string
		err      error
	)
	outDir := filepath.Join(req.TargetDir, req.Target.Triple(), req.Profile.Dir())

	build := tools.CargoBuild{
		Path:              d.cargo,
		Triple:            req.Target.Triple(),
		Profile:           req.Profile,
		ManifestPath:      req.ManifestPath,
		TargetDir:         req.TargetDir,
		Package:           req.Package,
		Features:          req.Features,
		NoDefaultFeatures: req.NoDefaultFeatures,
		AllFeatures:       req.AllFeatures,
		ExtraArgs:         req.ExtraArgs,
	}

	switch req.Target.Platform() {
	case target.Android:
		if d.android == nil {
			return nil, fmt.Errorf("%w: %s", errNoToolchain, target.Android)
		}
		if env, err = d.androidEnv(req); err != nil {
			return nil, err
		}
		build.Lib = true
		artifact = filepath.Join(outDir, "lib"+req.LibName+".so")
	case target.Apple:
		if d.apple == nil {
			return nil, fmt.Errorf("%w: %s", errNoToolchain, target.Apple)
		}
		if env, err = d.appleEnv(req); err != nil {
			return nil, err
		}
		build.Bin = req.BinName
		artifact = filepath.Join(outDir, req.BinName)
	default:
		return nil, &target.UnsupportedTargetError{Platform: req.Target.Platform(), Value: req.Target.Triple()}
	}
	build.Env = env

	d.logger.Info("compiling", "target", req.Target.Triple(), "profile", req.Profile)
	if _, err := d.runner.Run(ctx, build.Command()); err != nil {
		return nil, err
	}

	if _, err := os.Stat(artifact); err != nil {
		return nil, &types.MissingInputError{Kind: "compiled artifact", Path: artifact}
	}

	search, err := LinkSearchPaths(outDir)
	if err != nil {
		return nil, err
	}
	search = append(search, outDir, filepath.Join(outDir, "deps"))

	return &Output{Target: req.Target, Artifact: artifact, OutDir: outDir, SearchPaths: search}, nil
}

func (d *Driver) androidEnv(req Request) (map[string]string, error) {
	t := req.Target
	clang, err := d.android.Clang(t, req.MinSDK)
	if err != nil {
		return nil, err
	}
	clangxx, err := d.android.ClangXX(t, req.MinSDK)
	if err != nil {
		return nil, err
	}
	ar, err := d.android.LLVMTool("llvm-ar")
	if err != nil {
		return nil, err
	}

	triple := t.EnvTriple()
	cargoTriple := t.CargoEnvTriple()
	env := map[string]string{
		"CC_" + triple:  clang,
		"CXX_" + triple: clangxx,
		"AR_" + triple:  ar,
	}
	env["CARGO_TARGET_"+cargoTriple+"_LINKER"] = clang

	if d.android.NDKBuildTag() > libgccBuildTag {
		dir, err := writeLibgccShim(filepath.Join(req.TargetDir, t.Triple()))
		if err != nil {
			return nil, err
		}
		flags := "-L native=" + dir
		// cargo ignores the per-target variable while RUSTFLAGS is set.
		if global, ok := d.lookupEnv("RUSTFLAGS"); ok {
			d.logger.Debug("merging libgcc shim into RUSTFLAGS", "target", t.Triple())
			env["RUSTFLAGS"] = strings.TrimSpace(global + " " + flags)
			return env, nil
		}
		key := "CARGO_TARGET_" + cargoTriple + "_RUSTFLAGS"
		if existing, ok := d.lookupEnv(key); ok && strings.TrimSpace(existing) != "" {
			flags = existing + " " + flags
		}
		env[key] = flags
	}
	return env, nil
}

// writeLibgccShim writes a linker script named libgcc.a that redirects
// -lgcc to libunwind. It lives under the target's own output tree and is
// replaced atomically.
func writeLibgccShim(tripleDir string) (string, error) {
	dir := filepath.Join(tripleDir, "link-libgcc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create libgcc shim dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "libgcc-*.tmp")
	if err != nil {
		return "", fmt.Errorf("write libgcc shim: %w", err)
	}
	_, err = tmp.WriteString("INPUT(-lunwind)")
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), filepath.Join(dir, "libgcc.a"))
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write libgcc shim: %w", err)
	}
	return dir, nil
}

func (d *Driver) appleEnv(req Request) (map[string]string, error) {
	sdk, err := d.apple.SDK(req.Target.IsSimulator())
	if err != nil {
		return nil, err
	}
	env := map[string]string{"SDKROOT": sdk.Root}
	if req.DeploymentTarget != "" {
		env["IPHONEOS_DEPLOYMENT_TARGET"] = req.DeploymentTarget
	}
	return env, nil
}
