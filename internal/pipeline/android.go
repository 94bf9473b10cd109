// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/mobundle/mobundle/internal/assemble"
	"github.com/mobundle/mobundle/internal/closure"
	"github.com/mobundle/mobundle/internal/compiler"
	"github.com/mobundle/mobundle/internal/manifest"
	"github.com/mobundle/mobundle/internal/resource"
	"github.com/mobundle/mobundle/internal/signer"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/toolexec"
)

type (
	// AndroidPipeline builds a signed APK or app bundle.
	AndroidPipeline struct {
		bc        *BuildContext
		runner    toolexec.Runner
		android   *toolchain.Android
		compiler  *compiler.Driver
		resolver  *closure.Resolver
		packager  *resource.Packager
		assembler *assemble.Assembler
		keystores *signer.KeystoreRepository
		apksigner string
		opts      options
	}

	// targetLibraries is the per-target outcome of compile and resolve.
	targetLibraries struct {
		output *compiler.Output
		result *closure.Result
	}
)

// NewAndroidPipeline wires the stages around a discovered toolchain. The
// build tools are located here so a missing one fails before any
// compilation starts.
func NewAndroidPipeline(bc *BuildContext, runner toolexec.Runner, tc *toolchain.Android, opts ...Option) (*AndroidPipeline, error) {
	o := newOptions(opts)
	tool := func(find func(string) (string, error), name string) (string, error) {
		p, err := find(name)
		if err != nil {
			return "", stageErr(StageDiscover, target.Target{}, err)
		}
		return p, nil
	}

	aapt2, err := tool(tc.BuildTool, "aapt2")
	if err != nil {
		return nil, err
	}
	zipalign, err := tool(tc.BuildTool, "zipalign")
	if err != nil {
		return nil, err
	}
	apksigner, err := tool(tc.BuildTool, "apksigner")
	if err != nil {
		return nil, err
	}
	readelf, err := tool(tc.LLVMTool, "llvm-readelf")
	if err != nil {
		return nil, err
	}

	s := bc.Settings()
	return &AndroidPipeline{
		bc:      bc,
		runner:  runner,
		android: tc,
		compiler: compiler.New(runner,
			compiler.WithAndroid(tc),
			compiler.WithCargo(o.cargo),
			compiler.WithLookupEnv(o.lookupEnv),
			compiler.WithLogger(o.logger)),
		resolver: closure.NewResolver(closure.NewReadelfIntrospector(runner, readelf), closure.WithLogger(o.logger)),
		packager: resource.New(runner, aapt2, resource.WithLogger(o.logger)),
		assembler: assemble.New(runner,
			assemble.WithZipalign(zipalign),
			assemble.WithBundletool(s.JavaPath, s.BundletoolPath),
			assemble.WithLogger(o.logger)),
		keystores: signer.NewKeystoreRepository(runner,
			signer.WithKeystoreDir(s.KeystoreDir),
			signer.WithKeytoolPath(o.keytool),
			signer.WithKeystoreLogger(o.logger)),
		apksigner: apksigner,
		opts:      o,
	}, nil
}

// Run builds targets (the platform default when empty). The returned report
// is non-nil whenever a stage after the per-target barrier was reached, so
// callers can inspect artifacts left on disk after a late failure.
func (p *AndroidPipeline) Run(ctx context.Context, targets []target.Target) (*Report, error) {
	if len(targets) == 0 {
		targets = []target.Target{target.Default(target.Android)}
	}
	s := p.bc.Settings()
	id := p.bc.Identity()
	meta := p.bc.Project().Metadata.Android
	minSDK := cmp.Or(s.MinSDK, manifest.DefaultMinSDK)
	outDir := p.bc.OutputDir(string(target.Android))

	p.opts.logger.Info("building android package", "package", id.AndroidPackage(), "profile", s.Profile, "targets", len(targets))

	perTarget, err := forEachTarget(ctx, targets, s.Jobs, s.KeepGoing, func(ctx context.Context, t target.Target) (targetLibraries, error) {
		return p.buildTarget(ctx, t, minSDK)
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Platform: target.Android}
	var libs []closure.Library
	for _, tl := range perTarget {
		report.record(StageCompile, tl.output.Target.ABI(), tl.output.OutDir)
		libs = append(libs, tl.result.Closure.Libraries()...)
		report.Missing = append(report.Missing, tl.result.Missing...)
	}
	report.Libraries = libs

	targetSDK, jar, err := p.platform(s.TargetSDK)
	if err != nil {
		return report, stageErr(StageDiscover, target.Target{}, err)
	}

	m := manifest.Generate(meta.Manifest, id, s.Profile,
		manifest.WithSDK(minSDK, targetSDK),
		manifest.WithLibName(p.bc.Project().LibName))
	if err := m.Validate(); err != nil {
		return report, stageErr(StageManifest, target.Target{}, err)
	}
	manifestPath, err := manifest.WriteFile(m, outDir)
	if err != nil {
		return report, stageErr(StageManifest, target.Target{}, err)
	}
	report.record(StageManifest, "", manifestPath)

	compiled, err := p.packager.Compile(ctx, p.bc.Project().Resolve(meta.Resources), filepath.Join(outDir, "res"))
	if err != nil {
		return report, stageErr(StageResources, target.Target{}, err)
	}

	name := id.Name
	base, err := p.packager.Link(ctx, resource.LinkRequest{
		Manifest:   manifestPath,
		AndroidJar: jar,
		Output:     filepath.Join(outDir, name+".base.apk"),
		Flats:      compiled.Flats,
		AssetsDir:  p.bc.Project().Resolve(meta.Assets),
		Bundle:     s.Bundle,
	})
	if err != nil {
		return report, stageErr(StageLink, target.Target{}, err)
	}
	report.record(StageLink, "", base)

	var (
		stages []assemble.Stage
		sgn    signer.Signer
	)
	key, err := p.keystores.LoadOrCreate(ctx, s.Keystore)
	if err != nil {
		return report, stageErr(StageSign, target.Target{}, err)
	}
	signerOpts := []signer.Option{signer.WithLogger(p.opts.logger), signer.WithKeytool(p.opts.keytool)}
	if s.Verify {
		fp, err := p.keystores.Fingerprint(ctx, key)
		if err != nil {
			return report, stageErr(StageVerify, target.Target{}, err)
		}
		signerOpts = append(signerOpts, signer.WithExpectedFingerprint(fp))
	}

	if s.Bundle {
		report.Artifact = filepath.Join(outDir, name+".aab")
		stages, err = p.assembler.AAB(ctx, assemble.AABRequest{
			Base: base, Libraries: libs, WorkDir: filepath.Join(outDir, "bundle"), Output: report.Artifact,
		})
		sgn = signer.NewJarSigner(p.runner, key, signerOpts...)
	} else {
		report.Artifact = filepath.Join(outDir, name+".apk")
		stages, err = p.assembler.APK(ctx, assemble.APKRequest{
			Base: base, Libraries: libs, WorkDir: filepath.Join(outDir, "apk"), Output: report.Artifact,
		})
		sgn = signer.NewAPKSigner(p.runner, key, append(signerOpts, signer.WithTool(p.apksigner))...)
	}
	if err != nil {
		return report, stageErr(StageAssemble, target.Target{}, err)
	}
	for _, st := range stages {
		report.record(StageAssemble, st.Name, st.Path)
	}

	if err := signArtifact(ctx, report, sgn, report.Artifact, s.Verify); err != nil {
		return report, err
	}
	return report, publishArtifact(ctx, report, id, p.opts)
}

// buildTarget compiles one target and resolves the libraries to package
// with it.
func (p *AndroidPipeline) buildTarget(ctx context.Context, t target.Target, minSDK int) (targetLibraries, error) {
	s := p.bc.Settings()
	proj := p.bc.Project()

	out, err := p.compiler.Compile(ctx, compiler.Request{
		Target:            t,
		Profile:           s.Profile,
		ManifestPath:      p.bc.ManifestPath(),
		TargetDir:         p.bc.TargetDir(),
		Package:           proj.Name,
		LibName:           proj.LibName,
		Features:          s.Features,
		NoDefaultFeatures: s.NoDefaultFeatures,
		AllFeatures:       s.AllFeatures,
		ExtraArgs:         s.CargoArgs,
		MinSDK:            minSDK,
	})
	if err != nil {
		return targetLibraries{}, stageErr(StageCompile, t, err)
	}

	system, err := p.android.SystemLibraries(t, minSDK)
	if err != nil {
		return targetLibraries{}, stageErr(StageResolve, t, err)
	}
	runtimePath, err := p.android.RuntimeLibraryPath(t)
	if err != nil {
		return targetLibraries{}, stageErr(StageResolve, t, err)
	}
	search := slices.Clone(out.SearchPaths)
	for _, dir := range proj.Metadata.Android.RuntimeLibs {
		search = append(search, filepath.Join(proj.Resolve(dir), t.ABI()))
	}

	res, err := p.resolver.Resolve(ctx, closure.Request{
		Target:      t,
		Root:        out.Artifact,
		SearchPaths: search,
		SystemLibs:  system,
		RuntimeLib:  closure.Library{Name: toolchain.RuntimeLibrary, Path: runtimePath, Target: t},
		Strict:      s.StrictDependencies,
	})
	if err != nil {
		return targetLibraries{}, stageErr(StageResolve, t, err)
	}
	return targetLibraries{output: out, result: res}, nil
}

// platform picks the SDK platform to link against: the requested target
// level (falling back as for NDK levels), or the newest installed one.
func (p *AndroidPipeline) platform(requested int) (int, string, error) {
	level, err := p.android.HighestPlatform()
	if err != nil {
		return 0, "", err
	}
	if requested > 0 {
		picked, ok := toolchain.SelectPlatformLevel(p.android.SDK().Levels, requested)
		if !ok {
			return 0, "", fmt.Errorf("%w: android platform %d", toolchain.ErrNotFound, requested)
		}
		level = picked
	}
	jar, err := p.android.AndroidJar(level)
	if err != nil {
		return 0, "", err
	}
	return level, jar, nil
}

