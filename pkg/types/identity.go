// SPDX-License-Identifier: MPL-2.0

package types

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultNamespace is the reverse-domain segment used when a project does
// not configure one.
const DefaultNamespace = "rust"

// Identity is the package identity a platform descriptor is derived from.
type Identity struct {
	// Name is the crate name as written in Cargo.toml.
	Name string
	// Namespace is the middle segment of com.<namespace>.<name>.
	Namespace string
	// Label is the user-visible application name; defaults to Name.
	Label string
	// Version is the crate version; nil behaves as 0.0.0.
	Version *semver.Version
}

func (id Identity) namespace() string {
	if id.Namespace == "" {
		return DefaultNamespace
	}
	return id.Namespace
}

// AndroidPackage returns com.<namespace>.<name> with dashes turned into
// underscores, since Java package segments cannot contain '-'.
func (id Identity) AndroidPackage() string {
	return "com." + id.namespace() + "." + strings.ReplaceAll(id.Name, "-", "_")
}

// AppleBundleID returns com.<namespace>.<name> with underscores turned into
// dashes, since bundle identifiers only allow [A-Za-z0-9.-].
func (id Identity) AppleBundleID() string {
	return "com." + strings.ReplaceAll(id.namespace(), "_", "-") + "." + strings.ReplaceAll(id.Name, "_", "-")
}

// DisplayName returns Label, falling back to Name.
func (id Identity) DisplayName() string {
	if id.Label != "" {
		return id.Label
	}
	return id.Name
}

// VersionCode packs the version as major<<16 | minor<<8 | patch. Minor and
// patch are truncated to 8 bits.
func (id Identity) VersionCode() int {
	if id.Version == nil {
		return 0
	}
	return int(id.Version.Major())<<16 | int(id.Version.Minor()&0xff)<<8 | int(id.Version.Patch()&0xff)
}

// VersionName returns the version as written, or "0.0.0".
func (id Identity) VersionName() string {
	if id.Version == nil {
		return "0.0.0"
	}
	return id.Version.String()
}

// ShortVersion returns "major.minor.patch" without pre-release or metadata,
// as required by CFBundleShortVersionString.
func (id Identity) ShortVersion() string {
	if id.Version == nil {
		return "0.0.0"
	}
	return fmt.Sprintf("%d.%d.%d", id.Version.Major(), id.Version.Minor(), id.Version.Patch())
}
