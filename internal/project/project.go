// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/manifest"
	"github.com/mobundle/mobundle/pkg/types"
)

// ManifestName is the file name of a Rust package manifest.
const ManifestName = "Cargo.toml"

var (
	// ErrProjectNotFound is returned when no Cargo.toml is found.
	ErrProjectNotFound = errors.New("Cargo.toml not found")

	// ErrInvalidManifest is the sentinel error wrapped by ManifestError.
	ErrInvalidManifest = errors.New("invalid Cargo.toml")
)

type (
	// cargoToml is the subset of Cargo.toml mobundle reads.
	cargoToml struct {
		Package   *cargoPackage   `toml:"package"`
		Lib       *cargoTarget    `toml:"lib"`
		Bin       []cargoTarget   `toml:"bin"`
		Workspace *cargoWorkspace `toml:"workspace"`
	}

	cargoPackage struct {
		Name     string         `toml:"name"`
		Version  any            `toml:"version"`
		Metadata *cargoMetadata `toml:"metadata"`
	}

	cargoMetadata struct {
		Mobundle Metadata `toml:"mobundle"`
	}

	cargoTarget struct {
		Name      string   `toml:"name"`
		CrateType []string `toml:"crate-type"`
	}

	cargoWorkspace struct {
		Members []string `toml:"members"`
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
	}

	// Metadata is [package.metadata.mobundle].
	Metadata struct {
		Namespace string          `toml:"namespace"`
		AppName   string          `toml:"app_name"`
		Android   AndroidMetadata `toml:"android"`
		Apple     AppleMetadata   `toml:"apple"`
	}

	// AndroidMetadata is [package.metadata.mobundle.android].
	AndroidMetadata struct {
		Manifest  *manifest.AndroidManifest `toml:"manifest"`
		Targets   []string                  `toml:"targets"`
		Resources string                    `toml:"res"`
		Assets    string                    `toml:"assets"`
		// RuntimeLibs lists extra directories searched for NEEDED libraries.
		RuntimeLibs        []string `toml:"runtime_libs"`
		MinSDK             int      `toml:"min_sdk"`
		TargetSDK          int      `toml:"target_sdk"`
		Keystore           *Signing `toml:"keystore"`
		StrictDependencies *bool    `toml:"strict_dependencies"`
	}

	// AppleMetadata is [package.metadata.mobundle.apple].
	AppleMetadata struct {
		InfoPlist        *infoplist.InfoPlist `toml:"info_plist"`
		Targets          []string             `toml:"targets"`
		Resources        string               `toml:"resources"`
		Assets           string               `toml:"assets"`
		PlistFormat      string               `toml:"plist_format"`
		DeploymentTarget string               `toml:"deployment_target"`
		CodesignIdentity string               `toml:"codesign_identity"`
		Entitlements     string               `toml:"entitlements"`
	}

	// Signing names a release keystore.
	Signing struct {
		Path     string `toml:"path"`
		Password string `toml:"password"`
		Alias    string `toml:"alias"`
	}

	// Project is a loaded Rust package.
	Project struct {
		// ManifestPath is the absolute path of the package's Cargo.toml.
		ManifestPath string
		// Dir is the directory containing ManifestPath.
		Dir string
		// WorkspaceRoot is the directory of the enclosing workspace manifest,
		// or Dir when the package is not part of a workspace.
		WorkspaceRoot string
		Name          string
		Version       *semver.Version
		// LibName is the library artifact name (dashes become underscores).
		LibName  string
		BinNames []string
		Metadata Metadata
	}

	// ManifestError reports a Cargo.toml that cannot be used.
	ManifestError struct {
		Path string
		Err  error
	}
)

// Find walks up from dir to the nearest directory containing Cargo.toml and
// returns the manifest path.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for d := abs; ; d = filepath.Dir(d) {
		candidate := filepath.Join(d, ManifestName)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
		if filepath.Dir(d) == d {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrProjectNotFound, abs)
		}
	}
}

// Load reads the package manifest at path and resolves its workspace.
func Load(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	doc, err := readCargoToml(abs)
	if err != nil {
		return nil, err
	}
	if doc.Package == nil || doc.Package.Name == "" {
		return nil, &ManifestError{Path: abs, Err: errors.New("missing [package] name (virtual workspace manifests cannot be packaged)")}
	}

	p := &Project{
		ManifestPath:  abs,
		Dir:           filepath.Dir(abs),
		WorkspaceRoot: filepath.Dir(abs),
		Name:          doc.Package.Name,
		LibName:       strings.ReplaceAll(doc.Package.Name, "-", "_"),
		BinNames:      []string{doc.Package.Name},
	}
	if doc.Package.Metadata != nil {
		p.Metadata = doc.Package.Metadata.Mobundle
	}
	if doc.Lib != nil && doc.Lib.Name != "" {
		p.LibName = doc.Lib.Name
	}
	if len(doc.Bin) > 0 {
		p.BinNames = p.BinNames[:0]
		for _, b := range doc.Bin {
			p.BinNames = append(p.BinNames, b.Name)
		}
	}

	var ws *cargoWorkspace
	if doc.Workspace != nil {
		ws = doc.Workspace
	} else if root, wsDoc := findWorkspace(p.Dir); wsDoc != nil {
		p.WorkspaceRoot, ws = root, wsDoc
	}

	version, err := resolveVersion(doc.Package.Version, ws)
	if err != nil {
		return nil, &ManifestError{Path: abs, Err: err}
	}
	p.Version = version
	return p, nil
}

func readCargoToml(path string) (*cargoToml, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, path)
		}
		return nil, err
	}
	var doc cargoToml
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return &doc, nil
}

// findWorkspace walks up from the parent of dir to the first Cargo.toml with
// a [workspace] table.
func findWorkspace(dir string) (string, *cargoWorkspace) {
	for d := filepath.Dir(dir); ; d = filepath.Dir(d) {
		doc, err := readCargoToml(filepath.Join(d, ManifestName))
		if err == nil && doc.Workspace != nil {
			return d, doc.Workspace
		}
		if filepath.Dir(d) == d {
			return "", nil
		}
	}
}

// resolveVersion handles both `version = "x"` and `version.workspace = true`.
func resolveVersion(raw any, ws *cargoWorkspace) (*semver.Version, error) {
	switch v := raw.(type) {
	case nil:
		return semver.MustParse("0.0.0"), nil
	case string:
		return semver.StrictNewVersion(v)
	case map[string]any:
		if inherit, _ := v["workspace"].(bool); inherit {
			if ws == nil || ws.Package.Version == "" {
				return nil, errors.New("version.workspace = true but no [workspace.package] version found")
			}
			return semver.StrictNewVersion(ws.Package.Version)
		}
	}
	return nil, fmt.Errorf("unsupported version value %v", raw)
}

// Identity returns the package identity; a non-empty namespace overrides
// the project metadata.
func (p *Project) Identity(namespace string) types.Identity {
	if namespace == "" {
		namespace = p.Metadata.Namespace
	}
	return types.Identity{
		Name:      p.Name,
		Namespace: namespace,
		Label:     p.Metadata.AppName,
		Version:   p.Version,
	}
}

// TargetDir returns CARGO_TARGET_DIR when set, otherwise <workspace>/target.
func (p *Project) TargetDir(lookupEnv func(string) (string, bool)) string {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if dir, ok := lookupEnv("CARGO_TARGET_DIR"); ok && dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(p.WorkspaceRoot, dir)
	}
	return filepath.Join(p.WorkspaceRoot, "target")
}

// Resolve makes a metadata-relative path absolute against the package directory.
func (p *Project) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

// Error implements the error interface.
func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrInvalidManifest and the underlying cause.
func (e *ManifestError) Unwrap() []error { return []error{ErrInvalidManifest, e.Err} }
