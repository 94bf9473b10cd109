// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"context"
	"errors"
	"path/filepath"

	"github.com/mobundle/mobundle/internal/assemble"
	"github.com/mobundle/mobundle/internal/compiler"
	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/toolexec"
)

// ErrMixedSimulator is returned when device and simulator targets are
// requested together; they cannot share one bundle.
var ErrMixedSimulator = errors.New("device and simulator targets cannot be combined")

// ApplePipeline builds a signed .ipa.
type ApplePipeline struct {
	bc        *BuildContext
	runner    toolexec.Runner
	compiler  *compiler.Driver
	assembler *assemble.Assembler
	opts      options
}

// NewApplePipeline wires the stages around a discovered Xcode.
func NewApplePipeline(bc *BuildContext, runner toolexec.Runner, tc *toolchain.Apple, opts ...Option) *ApplePipeline {
	o := newOptions(opts)
	return &ApplePipeline{
		bc:     bc,
		runner: runner,
		compiler: compiler.New(runner,
			compiler.WithApple(tc),
			compiler.WithCargo(o.cargo),
			compiler.WithLookupEnv(o.lookupEnv),
			compiler.WithLogger(o.logger)),
		assembler: assemble.New(runner, assemble.WithLogger(o.logger)),
		opts:      o,
	}
}

// Run builds targets (the platform default when empty) into one .app,
// merging several architectures with lipo, then signs it and zips the ipa.
func (p *ApplePipeline) Run(ctx context.Context, targets []target.Target) (*Report, error) {
	if len(targets) == 0 {
		targets = []target.Target{target.Default(target.Apple)}
	}
	simulator := targets[0].IsSimulator()
	for _, t := range targets[1:] {
		if t.IsSimulator() != simulator {
			return nil, stageErr(StageCompile, t, ErrMixedSimulator)
		}
	}

	s := p.bc.Settings()
	id := p.bc.Identity()
	proj := p.bc.Project()
	meta := proj.Metadata.Apple
	outDir := p.bc.OutputDir(string(target.Apple))
	executable := proj.Name
	if len(proj.BinNames) > 0 {
		executable = proj.BinNames[0]
	}

	p.opts.logger.Info("building apple package", "bundle_id", id.AppleBundleID(), "profile", s.Profile, "targets", len(targets))

	outputs, err := forEachTarget(ctx, targets, s.Jobs, s.KeepGoing, func(ctx context.Context, t target.Target) (*compiler.Output, error) {
		out, err := p.compiler.Compile(ctx, compiler.Request{
			Target:            t,
			Profile:           s.Profile,
			ManifestPath:      p.bc.ManifestPath(),
			TargetDir:         p.bc.TargetDir(),
			Package:           proj.Name,
			BinName:           executable,
			Features:          s.Features,
			NoDefaultFeatures: s.NoDefaultFeatures,
			AllFeatures:       s.AllFeatures,
			ExtraArgs:         s.CargoArgs,
			DeploymentTarget:  s.DeploymentTarget,
		})
		if err != nil {
			return nil, stageErr(StageCompile, t, err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Platform: target.Apple}
	binaries := make([]string, 0, len(outputs))
	for _, out := range outputs {
		report.record(StageCompile, out.Target.ABI(), out.OutDir)
		binaries = append(binaries, out.Artifact)
	}

	plist := infoplist.Generate(meta.InfoPlist, id, infoplist.Options{
		Executable:       executable,
		DeploymentTarget: s.DeploymentTarget,
		Simulator:        simulator,
	})
	if err := plist.Validate(); err != nil {
		return report, stageErr(StageManifest, target.Target{}, err)
	}
	plistPath, err := infoplist.WriteFile(plist, cmp.Or(s.PlistFormat, infoplist.FormatXML), outDir)
	if err != nil {
		return report, stageErr(StageManifest, target.Target{}, err)
	}
	report.record(StageManifest, "", plistPath)

	app, err := p.assembler.App(ctx, assemble.AppRequest{
		Name:       id.Name,
		Executable: plist.BundleExecutable,
		Binaries:   binaries,
		InfoPlist:  plistPath,
		Resources:  proj.Resolve(meta.Resources),
		Assets:     proj.Resolve(meta.Assets),
		OutDir:     outDir,
	})
	if err != nil {
		return report, stageErr(StageAssemble, target.Target{}, err)
	}
	report.record(StageAssemble, "app", app)

	sgn := signer.NewCodeSigner(p.runner, s.CodesignIdentity, proj.Resolve(s.Entitlements), signer.WithLogger(p.opts.logger))
	if err := signArtifact(ctx, report, sgn, app, s.Verify); err != nil {
		return report, err
	}

	report.Artifact = filepath.Join(outDir, id.Name+".ipa")
	stages, err := p.assembler.IPA(app, report.Artifact)
	if err != nil {
		return report, stageErr(StageAssemble, target.Target{}, err)
	}
	for _, st := range stages[1:] {
		report.record(StageAssemble, st.Name, st.Path)
	}
	return report, publishArtifact(ctx, report, id, p.opts)
}
