// SPDX-License-Identifier: MPL-2.0

package infoplist

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"howett.net/plist"

	"github.com/mobundle/mobundle/pkg/types"
)

const (
	// FormatXML is the textual XML encoding (the default).
	FormatXML Format = "xml"
	// FormatBinary is the bplist00 encoding.
	FormatBinary Format = "binary"
	// FormatOpenStep is the NeXTSTEP/OpenStep text encoding.
	FormatOpenStep Format = "openstep"
	// FormatGNUStep is the GNUstep text encoding.
	FormatGNUStep Format = "gnustep"

	defaultDeploymentTarget = "13.0"
	defaultLaunchStoryboard = "LaunchScreen"
)

var (
	// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
	ErrInvalidFormat = errors.New("invalid plist format")

	// ErrIncomplete is the sentinel error wrapped by IncompleteError.
	ErrIncomplete = errors.New("incomplete Info.plist")

	formats = map[Format]int{
		FormatXML:      plist.XMLFormat,
		FormatBinary:   plist.BinaryFormat,
		FormatOpenStep: plist.OpenStepFormat,
		FormatGNUStep:  plist.GNUStepFormat,
	}

	defaultOrientations = []string{
		"UIInterfaceOrientationPortrait",
		"UIInterfaceOrientationLandscapeLeft",
		"UIInterfaceOrientationLandscapeRight",
	}
)

type (
	// Format selects a property list encoding.
	Format string

	// InvalidFormatError is returned for an unknown format name.
	InvalidFormatError struct {
		Value Format
	}

	// IncompleteError names a required key that is empty.
	IncompleteError struct {
		Key string
	}

	// InfoPlist is the subset of Info.plist keys mobundle manages. Extra
	// holds arbitrary additional keys from configuration; it never overrides
	// a managed key.
	InfoPlist struct {
		BundleIdentifier           string   `plist:"CFBundleIdentifier,omitempty" toml:"bundle_identifier,omitempty"`
		BundleName                 string   `plist:"CFBundleName,omitempty" toml:"bundle_name,omitempty"`
		BundleDisplayName          string   `plist:"CFBundleDisplayName,omitempty" toml:"bundle_display_name,omitempty"`
		BundleExecutable           string   `plist:"CFBundleExecutable,omitempty" toml:"bundle_executable,omitempty"`
		BundleVersion              string   `plist:"CFBundleVersion,omitempty" toml:"bundle_version,omitempty"`
		BundleShortVersionString   string   `plist:"CFBundleShortVersionString,omitempty" toml:"bundle_short_version_string,omitempty"`
		BundlePackageType          string   `plist:"CFBundlePackageType,omitempty" toml:"bundle_package_type,omitempty"`
		BundleDevelopmentRegion    string   `plist:"CFBundleDevelopmentRegion,omitempty" toml:"bundle_development_region,omitempty"`
		BundleInfoDictionaryVer    string   `plist:"CFBundleInfoDictionaryVersion,omitempty" toml:"-"`
		BundleSupportedPlatforms   []string `plist:"CFBundleSupportedPlatforms,omitempty" toml:"-"`
		MinimumOSVersion           string   `plist:"MinimumOSVersion,omitempty" toml:"minimum_os_version,omitempty"`
		RequiresIPhoneOS           *bool    `plist:"LSRequiresIPhoneOS,omitempty" toml:"requires_iphone_os,omitempty"`
		LaunchStoryboardName       string   `plist:"UILaunchStoryboardName,omitempty" toml:"launch_storyboard_name,omitempty"`
		RequiredDeviceCapabilities []string `plist:"UIRequiredDeviceCapabilities,omitempty" toml:"required_device_capabilities,omitempty"`
		SupportedOrientations      []string `plist:"UISupportedInterfaceOrientations,omitempty" toml:"supported_interface_orientations,omitempty"`
		SupportedOrientationsIPad  []string `plist:"UISupportedInterfaceOrientations~ipad,omitempty" toml:"supported_interface_orientations_ipad,omitempty"`
		StatusBarHidden            *bool    `plist:"UIStatusBarHidden,omitempty" toml:"status_bar_hidden,omitempty"`

		Extra map[string]any `plist:"-" toml:"extra,omitempty"`
	}
)

// ParseFormat resolves a format name; empty means FormatXML.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatXML, nil
	}
	f := Format(strings.ToLower(s))
	if _, ok := formats[f]; !ok {
		return "", &InvalidFormatError{Value: Format(s)}
	}
	return f, nil
}

// Options adjusts the defaults used by Generate.
type Options struct {
	// Executable is the bundle executable name; defaults to the crate name.
	Executable string
	// DeploymentTarget is the minimum iOS version.
	DeploymentTarget string
	// Simulator marks a simulator-only bundle.
	Simulator bool
}

// Generate returns a complete property list from the user's partial one.
func Generate(user *InfoPlist, id types.Identity, opts Options) *InfoPlist {
	p := &InfoPlist{}
	if user != nil {
		*p = *user
		p.BundleSupportedPlatforms = slices.Clone(user.BundleSupportedPlatforms)
		p.RequiredDeviceCapabilities = slices.Clone(user.RequiredDeviceCapabilities)
		p.SupportedOrientations = slices.Clone(user.SupportedOrientations)
		p.SupportedOrientationsIPad = slices.Clone(user.SupportedOrientationsIPad)
		p.Extra = maps.Clone(user.Extra)
	}

	setDefault(&p.BundleIdentifier, id.AppleBundleID())
	setDefault(&p.BundleName, id.Name)
	setDefault(&p.BundleDisplayName, id.DisplayName())
	setDefault(&p.BundleExecutable, cmp.Or(opts.Executable, id.Name))
	setDefault(&p.BundleVersion, id.VersionName())
	setDefault(&p.BundleShortVersionString, id.ShortVersion())
	setDefault(&p.BundlePackageType, "APPL")
	setDefault(&p.BundleDevelopmentRegion, "en")
	setDefault(&p.BundleInfoDictionaryVer, "6.0")
	setDefault(&p.MinimumOSVersion, cmp.Or(opts.DeploymentTarget, defaultDeploymentTarget))
	setDefault(&p.LaunchStoryboardName, defaultLaunchStoryboard)
	if p.RequiresIPhoneOS == nil {
		v := true
		p.RequiresIPhoneOS = &v
	}
	if len(p.BundleSupportedPlatforms) == 0 {
		platform := "iPhoneOS"
		if opts.Simulator {
			platform = "iPhoneSimulator"
		}
		p.BundleSupportedPlatforms = []string{platform}
	}
	if len(p.RequiredDeviceCapabilities) == 0 && !opts.Simulator {
		p.RequiredDeviceCapabilities = []string{"arm64"}
	}
	if len(p.SupportedOrientations) == 0 {
		p.SupportedOrientations = slices.Clone(defaultOrientations)
	}
	if len(p.SupportedOrientationsIPad) == 0 {
		p.SupportedOrientationsIPad = append(slices.Clone(p.SupportedOrientations), "UIInterfaceOrientationPortraitUpsideDown")
	}
	return p
}

// Validate checks the keys SpringBoard needs to install the bundle.
func (p *InfoPlist) Validate() error {
	required := []struct{ key, value string }{
		{"CFBundleIdentifier", p.BundleIdentifier},
		{"CFBundleExecutable", p.BundleExecutable},
		{"CFBundleVersion", p.BundleVersion},
		{"CFBundlePackageType", p.BundlePackageType},
	}
	for _, r := range required {
		if r.value == "" {
			return &IncompleteError{Key: r.key}
		}
	}
	return nil
}

// Encode renders the property list in the requested format. Managed keys
// take precedence over Extra.
func Encode(p *InfoPlist, f Format) ([]byte, error) {
	code, ok := formats[f]
	if !ok {
		return nil, &InvalidFormatError{Value: f}
	}
	dict, err := p.dict()
	if err != nil {
		return nil, err
	}
	if code == plist.BinaryFormat {
		return plist.Marshal(dict, code)
	}
	return plist.MarshalIndent(dict, code, "\t")
}

// WriteFile encodes p into <dir>/Info.plist and returns the path.
func WriteFile(p *InfoPlist, f Format, dir string) (string, error) {
	data, err := Encode(p, f)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "Info.plist")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write Info.plist: %w", err)
	}
	return path, nil
}

// dict flattens the typed fields and Extra into one dictionary.
func (p *InfoPlist) dict() (map[string]any, error) {
	managed, err := plist.Marshal(p, plist.BinaryFormat)
	if err != nil {
		return nil, fmt.Errorf("encode Info.plist: %w", err)
	}
	var out map[string]any
	if _, err := plist.Unmarshal(managed, &out); err != nil {
		return nil, fmt.Errorf("encode Info.plist: %w", err)
	}
	for k, v := range p.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out, nil
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid plist format %q (valid: xml, binary, openstep, gnustep)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// Error implements the error interface.
func (e *IncompleteError) Error() string {
	return fmt.Sprintf("Info.plist key %s is empty", e.Key)
}

// Unwrap returns ErrIncomplete for errors.Is() compatibility.
func (e *IncompleteError) Unwrap() error { return ErrIncomplete }
