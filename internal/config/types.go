// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// minSupportedSDK is the lowest API level the NDK clang drivers target.
	minSupportedSDK = 21
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidField is the sentinel error wrapped by InvalidFieldError.
	ErrInvalidField = errors.New("invalid config field")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidFieldError names one config field with an unusable value.
	InvalidFieldError struct {
		Field  string
		Value  any
		Reason string
	}

	// InvalidConfigError collects field-level validation errors from all
	// sections of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the global mobundle configuration.
	Config struct {
		Android AndroidConfig `json:"android" mapstructure:"android"`
		Apple   AppleConfig   `json:"apple" mapstructure:"apple"`
		Build   BuildConfig   `json:"build" mapstructure:"build"`
		Signing SigningConfig `json:"signing" mapstructure:"signing"`
		Publish PublishConfig `json:"publish" mapstructure:"publish"`
		UI      UIConfig      `json:"ui" mapstructure:"ui"`
	}

	// AndroidConfig locates the Android toolchain. Empty paths fall back to
	// the ANDROID_* environment variables.
	AndroidConfig struct {
		SDKPath        string `json:"sdk_path" mapstructure:"sdk_path"`
		NDKPath        string `json:"ndk_path" mapstructure:"ndk_path"`
		BundletoolPath string `json:"bundletool_path" mapstructure:"bundletool_path"`
		// JavaPath is the java binary used to run bundletool.
		JavaPath string `json:"java_path" mapstructure:"java_path"`
		// MinSDK is used when the project does not set one; 0 keeps the
		// built-in default.
		MinSDK int `json:"min_sdk" mapstructure:"min_sdk"`
	}

	// AppleConfig locates Xcode and holds signing defaults.
	AppleConfig struct {
		DeveloperDir     string `json:"developer_dir" mapstructure:"developer_dir"`
		DeploymentTarget string `json:"deployment_target" mapstructure:"deployment_target"`
		CodesignIdentity string `json:"codesign_identity" mapstructure:"codesign_identity"`
	}

	// BuildConfig controls the pipeline.
	BuildConfig struct {
		// Jobs bounds parallel per-target work; 0 means one per CPU.
		Jobs               int    `json:"jobs" mapstructure:"jobs"`
		KeepGoing          bool   `json:"keep_going" mapstructure:"keep_going"`
		StrictDependencies bool   `json:"strict_dependencies" mapstructure:"strict_dependencies"`
		Namespace          string `json:"namespace" mapstructure:"namespace"`
		// Verify checks signatures after signing.
		Verify bool `json:"verify" mapstructure:"verify"`
	}

	// SigningConfig configures debug keystore storage.
	SigningConfig struct {
		// KeystoreDir holds the generated debug keystore; empty means ~/.android.
		KeystoreDir string `json:"keystore_dir" mapstructure:"keystore_dir"`
	}

	// PublishConfig names the S3-compatible bucket artifacts are uploaded to.
	// Credentials come from the AWS default chain.
	PublishConfig struct {
		Bucket   string `json:"bucket" mapstructure:"bucket"`
		Prefix   string `json:"prefix" mapstructure:"prefix"`
		Region   string `json:"region" mapstructure:"region"`
		Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface for InvalidFieldError.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: invalid value %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidField for errors.Is() compatibility.
func (e *InvalidFieldError) Unwrap() error { return ErrInvalidField }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid checks constraints the CUE schema cannot express on its own.
func (c AndroidConfig) IsValid() (bool, []error) {
	var errs []error
	errs = appendPathErr(errs, "android.sdk_path", c.SDKPath)
	errs = appendPathErr(errs, "android.ndk_path", c.NDKPath)
	errs = appendPathErr(errs, "android.bundletool_path", c.BundletoolPath)
	errs = appendPathErr(errs, "android.java_path", c.JavaPath)
	if c.MinSDK != 0 && c.MinSDK < minSupportedSDK {
		errs = append(errs, &InvalidFieldError{Field: "android.min_sdk", Value: c.MinSDK, Reason: fmt.Sprintf("must be at least %d", minSupportedSDK)})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the AppleConfig has valid fields.
func (c AppleConfig) IsValid() (bool, []error) {
	var errs []error
	errs = appendPathErr(errs, "apple.developer_dir", c.DeveloperDir)
	if c.DeploymentTarget != "" {
		if _, err := semver.NewVersion(c.DeploymentTarget); err != nil {
			errs = append(errs, &InvalidFieldError{Field: "apple.deployment_target", Value: c.DeploymentTarget, Reason: "must be a version such as 13.0"})
		}
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the BuildConfig has valid fields.
func (c BuildConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, &InvalidFieldError{Field: "build.jobs", Value: c.Jobs, Reason: "must not be negative"})
	}
	if strings.ContainsAny(c.Namespace, " /") {
		errs = append(errs, &InvalidFieldError{Field: "build.namespace", Value: c.Namespace, Reason: "must not contain spaces or slashes"})
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the PublishConfig has valid fields. A prefix or
// endpoint without a bucket is reported because it can never take effect.
func (c PublishConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Bucket == "" && (c.Prefix != "" || c.Endpoint != "") {
		errs = append(errs, &InvalidFieldError{Field: "publish.bucket", Value: `""`, Reason: "required when prefix or endpoint is set"})
	}
	return len(errs) == 0, errs
}

// IsValid delegates to ColorScheme.IsValid().
func (c UIConfig) IsValid() (bool, []error) {
	return c.ColorScheme.IsValid()
}

// IsValid returns whether the Config has valid fields in every section.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.Android.IsValid,
		c.Apple.IsValid,
		c.Build.IsValid,
		c.Publish.IsValid,
		c.UI.IsValid,
	} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := (PathField{Field: "signing.keystore_dir", Value: c.Signing.KeystoreDir}).IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// PathField is an optional path setting. The zero value is valid; any other
// value must not be whitespace-only.
type PathField struct {
	Field string
	Value string
}

// IsValid returns whether the path is usable.
func (p PathField) IsValid() (bool, []error) {
	if p.Value != "" && strings.TrimSpace(p.Value) == "" {
		return false, []error{&InvalidFieldError{Field: p.Field, Value: fmt.Sprintf("%q", p.Value), Reason: "non-empty value must not be whitespace-only"}}
	}
	return true, nil
}

func appendPathErr(errs []error, field, value string) []error {
	if _, fieldErrs := (PathField{Field: field, Value: value}).IsValid(); len(fieldErrs) > 0 {
		return append(errs, fieldErrs...)
	}
	return errs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Publish: PublishConfig{
			Region: "us-east-1",
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
