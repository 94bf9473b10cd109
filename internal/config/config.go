// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/mobundle/mobundle/internal/cueutil"
	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "mobundle"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. MOBUNDLE_BUILD_JOBS.
	EnvPrefix = "MOBUNDLE"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the mobundle configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the path of the global config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// newViper returns a viper instance holding the defaults and bound to
// MOBUNDLE_* environment variables.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("android.sdk_path", defaults.Android.SDKPath)
	v.SetDefault("android.ndk_path", defaults.Android.NDKPath)
	v.SetDefault("android.bundletool_path", defaults.Android.BundletoolPath)
	v.SetDefault("android.java_path", defaults.Android.JavaPath)
	v.SetDefault("android.min_sdk", defaults.Android.MinSDK)
	v.SetDefault("apple.developer_dir", defaults.Apple.DeveloperDir)
	v.SetDefault("apple.deployment_target", defaults.Apple.DeploymentTarget)
	v.SetDefault("apple.codesign_identity", defaults.Apple.CodesignIdentity)
	v.SetDefault("build.jobs", defaults.Build.Jobs)
	v.SetDefault("build.keep_going", defaults.Build.KeepGoing)
	v.SetDefault("build.strict_dependencies", defaults.Build.StrictDependencies)
	v.SetDefault("build.namespace", defaults.Build.Namespace)
	v.SetDefault("build.verify", defaults.Build.Verify)
	v.SetDefault("signing.keystore_dir", defaults.Signing.KeystoreDir)
	v.SetDefault("publish.bucket", defaults.Publish.Bucket)
	v.SetDefault("publish.prefix", defaults.Publish.Prefix)
	v.SetDefault("publish.region", defaults.Publish.Region)
	v.SetDefault("publish.endpoint", defaults.Publish.Endpoint)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	// Every key has a default, so AutomaticEnv sees all of them.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'mobundle config show' to see the effective configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
			resolvedPath = cuePath
		}
		// No config file means defaults plus environment.
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'mobundle config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Fix the listed fields in the config file or the MOBUNDLE_* environment").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// viper. Fields are optional, so the document is decoded non-concretely into
// a map rather than a struct.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}
	return cfgPath, writeConfig(cfgPath, DefaultConfig())
}

// Save writes cfg to the global config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return writeConfig(cfgPath, cfg)
}

func writeConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a config.cue document. Empty strings and zero
// numbers are omitted so the file only pins what differs from the defaults.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// mobundle configuration file\n\n")

	writeSection(&sb, "android", []field{
		{"sdk_path", cfg.Android.SDKPath},
		{"ndk_path", cfg.Android.NDKPath},
		{"bundletool_path", cfg.Android.BundletoolPath},
		{"java_path", cfg.Android.JavaPath},
		{"min_sdk", cfg.Android.MinSDK},
	})
	writeSection(&sb, "apple", []field{
		{"developer_dir", cfg.Apple.DeveloperDir},
		{"deployment_target", cfg.Apple.DeploymentTarget},
		{"codesign_identity", cfg.Apple.CodesignIdentity},
	})
	writeSection(&sb, "build", []field{
		{"jobs", cfg.Build.Jobs},
		{"keep_going", cfg.Build.KeepGoing},
		{"strict_dependencies", cfg.Build.StrictDependencies},
		{"namespace", cfg.Build.Namespace},
		{"verify", cfg.Build.Verify},
	})
	writeSection(&sb, "signing", []field{
		{"keystore_dir", cfg.Signing.KeystoreDir},
	})
	writeSection(&sb, "publish", []field{
		{"bucket", cfg.Publish.Bucket},
		{"prefix", cfg.Publish.Prefix},
		{"region", cfg.Publish.Region},
		{"endpoint", cfg.Publish.Endpoint},
	})
	writeSection(&sb, "ui", []field{
		{"color_scheme", string(cfg.UI.ColorScheme)},
		{"verbose", cfg.UI.Verbose},
	})

	return strings.TrimSuffix(sb.String(), "\n") + "\n"
}

type field struct {
	name  string
	value any
}

func writeSection(sb *strings.Builder, name string, fields []field) {
	fmt.Fprintf(sb, "%s: {\n", name)
	for _, f := range fields {
		switch v := f.value.(type) {
		case string:
			if v != "" {
				fmt.Fprintf(sb, "\t%s: %q\n", f.name, v)
			}
		case int:
			if v != 0 {
				fmt.Fprintf(sb, "\t%s: %d\n", f.name, v)
			}
		case bool:
			fmt.Fprintf(sb, "\t%s: %v\n", f.name, v)
		}
	}
	sb.WriteString("}\n\n")
}
