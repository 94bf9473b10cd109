// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

const (
	profileDebug   = "debug"
	profileRelease = "release"

	// cargoDevProfile is the cargo name of the profile whose output directory is "debug".
	cargoDevProfile = "dev"
)

var (
	// Debug is the unoptimised development profile.
	Debug = Profile{name: profileDebug}
	// Release is the optimised distribution profile.
	Release = Profile{name: profileRelease}

	// ErrInvalidProfile is the sentinel error wrapped by InvalidProfileError.
	ErrInvalidProfile = errors.New("invalid profile")
)

type (
	// Profile selects the cargo build profile. It determines the output
	// subdirectory name and the optimisation flags passed to the compiler.
	// Profiles are plain values and compare with ==.
	Profile struct {
		name string
	}

	// InvalidProfileError is returned when a custom profile name is empty or
	// contains path separators or whitespace.
	InvalidProfileError struct {
		Value string
	}
)

// Custom returns a user-defined cargo profile. The reserved names "debug",
// "dev" and "release" map to the built-in profiles.
func Custom(name string) (Profile, error) {
	switch name {
	case profileDebug, cargoDevProfile:
		return Debug, nil
	case profileRelease:
		return Release, nil
	}
	if name == "" || strings.ContainsAny(name, `/\ `+"\t") {
		return Profile{}, &InvalidProfileError{Value: name}
	}
	return Profile{name: name}, nil
}

// ParseProfile resolves a profile name, defaulting to Debug when name is empty.
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return Debug, nil
	}
	return Custom(name)
}

// Name returns the profile name as used in configuration and log output.
func (p Profile) Name() string {
	if p.name == "" {
		return profileDebug
	}
	return p.name
}

// Dir returns the output subdirectory name cargo uses for this profile.
func (p Profile) Dir() string { return p.Name() }

// IsDebug reports whether the profile produces debuggable artifacts.
func (p Profile) IsDebug() bool { return p.Name() == profileDebug }

// IsRelease reports whether this is the built-in release profile.
func (p Profile) IsRelease() bool { return p.name == profileRelease }

// CargoArgs returns the cargo flags selecting this profile.
func (p Profile) CargoArgs() []string {
	switch p.Name() {
	case profileDebug:
		return nil
	case profileRelease:
		return []string{"--release"}
	default:
		return []string{"--profile", p.name}
	}
}

// String implements fmt.Stringer.
func (p Profile) String() string { return p.Name() }

// Error implements the error interface for InvalidProfileError.
func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile %q: must be a non-empty name without separators or whitespace", e.Value)
}

// Unwrap returns ErrInvalidProfile for errors.Is() compatibility.
func (e *InvalidProfileError) Unwrap() error { return ErrInvalidProfile }
