// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/mobundle/mobundle/internal/config"
	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/internal/pipeline"
	"github.com/mobundle/mobundle/internal/project"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

// errProfileConflict is returned when --release and --profile disagree.
var errProfileConflict = errors.New("--release conflicts with --profile")

type (
	// buildFlags holds the flags shared by the build and manifest commands.
	buildFlags struct {
		manifestPath      string
		release           bool
		profile           string
		targets           []string
		jobs              int
		keepGoing         bool
		strictDeps        bool
		features          []string
		noDefaultFeatures bool
		allFeatures       bool
		bundle            bool
		bundletool        string
		minSDK            int
		namespace         string
		verify            bool
		publish           bool
		watch             bool
	}

	// resolved is the outcome of merging configuration sources for one
	// platform.
	resolved struct {
		settings pipeline.Settings
		targets  []target.Target
	}
)

// register adds the flags to fs. Android-only flags are skipped for other
// platforms.
func (f *buildFlags) register(fs *pflag.FlagSet, p target.Platform) {
	fs.StringVar(&f.manifestPath, "manifest-path", "", "path to Cargo.toml (default: nearest one above the working directory)")
	fs.BoolVarP(&f.release, "release", "r", false, "build with the release profile")
	fs.StringVar(&f.profile, "profile", "", "cargo profile to build with")
	fs.StringSliceVarP(&f.targets, "target", "t", nil, "target ABI or triple (repeatable)")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "targets built in parallel (default: one per CPU)")
	fs.BoolVar(&f.keepGoing, "keep-going", false, "build every target even after a failure")
	fs.StringSliceVarP(&f.features, "features", "F", nil, "cargo features to enable")
	fs.BoolVar(&f.noDefaultFeatures, "no-default-features", false, "disable the default cargo features")
	fs.BoolVar(&f.allFeatures, "all-features", false, "enable all cargo features")
	fs.StringVar(&f.namespace, "namespace", "", "application id namespace (default: project metadata, then \"rust\")")
	fs.BoolVar(&f.verify, "verify", false, "verify the signature after signing")
	fs.BoolVar(&f.publish, "publish", false, "upload the signed artifact to the configured bucket")
	fs.BoolVarP(&f.watch, "watch", "w", false, "rebuild whenever the crate sources change")

	if p == target.Android {
		fs.BoolVar(&f.strictDeps, "strict-dependencies", false, "fail when a needed shared library cannot be found")
		fs.BoolVar(&f.bundle, "bundle", false, "build an Android App Bundle (.aab) instead of an APK")
		fs.StringVar(&f.bundletool, "bundletool", "", "path to bundletool.jar")
		fs.IntVar(&f.minSDK, "min-sdk", 0, "minimum Android API level")
	}
}

// profileValue resolves --release and --profile.
func (f *buildFlags) profileValue() (types.Profile, error) {
	if f.release {
		if f.profile != "" && f.profile != types.Release.Name() {
			return types.Profile{}, errProfileConflict
		}
		return types.Release, nil
	}
	return types.ParseProfile(f.profile)
}

// resolveSettings merges defaults < global config < project metadata <
// flags. changed reports whether a flag was set on the command line.
func resolveSettings(cfg *config.Config, proj *project.Project, p target.Platform, f *buildFlags, changed func(string) bool) (*resolved, error) {
	profile, err := f.profileValue()
	if err != nil {
		return nil, err
	}

	boolOf := func(name string, flag, fallback bool) bool {
		if changed(name) {
			return flag
		}
		return fallback
	}

	android := proj.Metadata.Android
	apple := proj.Metadata.Apple

	s := pipeline.Settings{
		Profile:           profile,
		Namespace:         f.namespace,
		Jobs:              cmp.Or(f.jobs, cfg.Build.Jobs),
		KeepGoing:         boolOf("keep-going", f.keepGoing, cfg.Build.KeepGoing),
		Verify:            boolOf("verify", f.verify, cfg.Build.Verify),
		Features:          f.features,
		NoDefaultFeatures: f.noDefaultFeatures,
		AllFeatures:       f.allFeatures,
		KeystoreDir:       cfg.Signing.KeystoreDir,
	}
	// A project namespace beats the global one; Identity handles the
	// project level, so the global value only fills a gap.
	if s.Namespace == "" && proj.Metadata.Namespace == "" {
		s.Namespace = cfg.Build.Namespace
	}

	var wanted []string
	switch p {
	case target.Android:
		strict := cfg.Build.StrictDependencies
		if android.StrictDependencies != nil {
			strict = *android.StrictDependencies
		}
		s.StrictDependencies = boolOf("strict-dependencies", f.strictDeps, strict)
		s.Bundle = f.bundle
		s.MinSDK = cmp.Or(f.minSDK, android.MinSDK, cfg.Android.MinSDK)
		s.TargetSDK = android.TargetSDK
		s.BundletoolPath = cmp.Or(f.bundletool, cfg.Android.BundletoolPath)
		s.JavaPath = cmp.Or(cfg.Android.JavaPath, "java")
		if ks := android.Keystore; ks != nil {
			s.Keystore = &tools.Keystore{
				Path:     proj.Resolve(ks.Path),
				Password: ks.Password,
				Alias:    ks.Alias,
			}
		}
		wanted = android.Targets

	case target.Apple:
		s.DeploymentTarget = cmp.Or(apple.DeploymentTarget, cfg.Apple.DeploymentTarget)
		s.CodesignIdentity = cmp.Or(apple.CodesignIdentity, cfg.Apple.CodesignIdentity)
		s.Entitlements = proj.Resolve(apple.Entitlements)
		format, err := infoplist.ParseFormat(apple.PlistFormat)
		if err != nil {
			return nil, fmt.Errorf("%s: plist_format: %w", proj.ManifestPath, err)
		}
		s.PlistFormat = format
		wanted = apple.Targets
	}

	if len(f.targets) > 0 {
		wanted = f.targets
	}
	targets, err := target.ParseList(p, wanted)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select targets").
			WithResource(string(p)).
			WithSuggestion("Run 'mobundle targets' to list the supported ABIs and triples").
			Wrap(err).
			BuildError()
	}
	return &resolved{settings: s, targets: targets}, nil
}

// loadProject finds and loads the Cargo.toml named by manifestPath, or the
// nearest one above the working directory.
func (a *App) loadProject(manifestPath string) (*project.Project, error) {
	path := manifestPath
	if path == "" {
		wd, err := a.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = project.Find(wd); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("find project").
				WithResource(wd).
				WithSuggestion("Run mobundle inside a Rust package or pass --manifest-path").
				Wrap(err).
				BuildError()
		}
	}
	proj, err := project.Load(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load project").
			WithResource(path).
			Wrap(err).
			BuildError()
	}
	return proj, nil
}
