// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path/filepath"
	"runtime"
	"slices"

	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/project"
	"github.com/mobundle/mobundle/internal/tools"
	"github.com/mobundle/mobundle/pkg/types"
)

type (
	// Settings is the merged build configuration (defaults, global config,
	// project metadata and command-line flags, in increasing precedence).
	Settings struct {
		Profile   types.Profile
		Namespace string
		// Jobs bounds concurrent per-target work; values below 1 use the
		// number of CPUs.
		Jobs               int
		KeepGoing          bool
		StrictDependencies bool

		Features          []string
		NoDefaultFeatures bool
		AllFeatures       bool
		CargoArgs         []string

		// Bundle builds an app bundle (.aab) instead of an APK.
		Bundle         bool
		MinSDK         int
		TargetSDK      int
		BundletoolPath string
		JavaPath       string

		DeploymentTarget string
		CodesignIdentity string
		Entitlements     string
		PlistFormat      infoplist.Format

		// KeystoreDir holds the debug keystore; empty means ~/.android.
		KeystoreDir string
		// Keystore is a release key; nil selects the debug key.
		Keystore *tools.Keystore
		Verify   bool
	}

	// BuildContext holds the paths and settings shared by every stage.
	BuildContext struct {
		project       *project.Project
		workspaceRoot string
		manifestPath  string
		projectDir    string
		targetDir     string
		settings      Settings
	}
)

// NewBuildContext resolves the build paths for p. lookupEnv is consulted
// for CARGO_TARGET_DIR; nil uses the process environment.
func NewBuildContext(p *project.Project, s Settings, lookupEnv func(string) (string, bool)) *BuildContext {
	if s.Jobs < 1 {
		s.Jobs = runtime.NumCPU()
	}
	s.Features = slices.Clone(s.Features)
	s.CargoArgs = slices.Clone(s.CargoArgs)
	if s.Keystore != nil {
		k := *s.Keystore
		s.Keystore = &k
	}
	return &BuildContext{
		project:       p,
		workspaceRoot: p.WorkspaceRoot,
		manifestPath:  p.ManifestPath,
		projectDir:    p.Dir,
		targetDir:     p.TargetDir(lookupEnv),
		settings:      s,
	}
}

// Project returns the loaded package.
func (b *BuildContext) Project() *project.Project { return b.project }

// WorkspaceRoot returns the cargo workspace directory.
func (b *BuildContext) WorkspaceRoot() string { return b.workspaceRoot }

// ManifestPath returns the package's Cargo.toml.
func (b *BuildContext) ManifestPath() string { return b.manifestPath }

// ProjectDir returns the package directory.
func (b *BuildContext) ProjectDir() string { return b.projectDir }

// TargetDir returns the cargo target directory.
func (b *BuildContext) TargetDir() string { return b.targetDir }

// Settings returns a copy of the merged settings.
func (b *BuildContext) Settings() Settings {
	s := b.settings
	s.Features = slices.Clone(s.Features)
	s.CargoArgs = slices.Clone(s.CargoArgs)
	return s
}

// Profile returns the build profile.
func (b *BuildContext) Profile() types.Profile { return b.settings.Profile }

// Identity returns the application identity.
func (b *BuildContext) Identity() types.Identity {
	return b.project.Identity(b.settings.Namespace)
}

// OutputDir returns <target-dir>/<platform>/<profile>, where descriptors,
// intermediate packages and the final artifact are written.
func (b *BuildContext) OutputDir(platform string) string {
	return filepath.Join(b.targetDir, platform, b.settings.Profile.Dir())
}
