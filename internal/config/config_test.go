// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/mobundle/mobundle/internal/issue"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("UI.ColorScheme = %q, want auto", cfg.UI.ColorScheme)
	}
	if cfg.Publish.Region != "us-east-1" {
		t.Errorf("Publish.Region = %q", cfg.Publish.Region)
	}
	if cfg.Build.Jobs != 0 || cfg.Build.KeepGoing || cfg.Build.StrictDependencies {
		t.Errorf("Build = %+v, want zero values", cfg.Build)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("DefaultConfig().IsValid() = %v", errs)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "no file keeps defaults",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("cfg = %+v, want defaults", cfg)
				}
			},
		},
		{
			name: "sections merge over defaults",
			content: `
android: {
	ndk_path:        "/opt/ndk"
	bundletool_path: "/opt/bundletool-all.jar"
	min_sdk:         26
}
apple: deployment_target: "15.0"
build: {
	jobs:       3
	keep_going: true
	namespace:  "acme"
}
publish: bucket: "artifacts"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Android.NDKPath != "/opt/ndk" || cfg.Android.MinSDK != 26 {
					t.Errorf("Android = %+v", cfg.Android)
				}
				if cfg.Apple.DeploymentTarget != "15.0" {
					t.Errorf("Apple = %+v", cfg.Apple)
				}
				if cfg.Build.Jobs != 3 || !cfg.Build.KeepGoing || cfg.Build.Namespace != "acme" {
					t.Errorf("Build = %+v", cfg.Build)
				}
				if cfg.Publish.Bucket != "artifacts" || cfg.Publish.Region != "us-east-1" {
					t.Errorf("Publish = %+v", cfg.Publish)
				}
				if cfg.UI.ColorScheme != ColorSchemeAuto {
					t.Errorf("UI = %+v", cfg.UI)
				}
			},
		},
		{
			name:    "schema bound",
			content: `build: jobs: -1`,
			wantErr: "build.jobs",
		},
		{
			name:    "unknown field",
			content: `build: parallel: true`,
			wantErr: "parallel",
		},
		{
			name:    "bad color scheme",
			content: `ui: color_scheme: "neon"`,
			wantErr: "ui.color_scheme",
		},
		{
			name:    "bundletool must be a jar",
			content: `android: bundletool_path: "/usr/bin/bundletool"`,
			wantErr: "bundletool_path",
		},
		{
			name:    "semantic validation after schema",
			content: `android: min_sdk: 19`,
			wantErr: "android.min_sdk",
		},
		{
			name:    "prefix without bucket",
			content: `publish: prefix: "nightly"`,
			wantErr: "publish.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			wantPath := ""
			if tt.content != "" {
				wantPath = writeConfigFile(t, dir, tt.content)
			}

			cfg, path, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				if issue.IssueOf(err) != issue.ConfigLoadFailedId {
					t.Errorf("IssueOf(err) = %d, want ConfigLoadFailedId", issue.IssueOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if path != wantPath {
				t.Errorf("Load() path = %q, want %q", path, wantPath)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadValidationErrorIsTyped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfigFile(t, dir, `android: min_sdk: 19`)
	_, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if !errors.Is(err, ErrInvalidField) {
		t.Errorf("errors.Is(err, ErrInvalidField) = false: %v", err)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.cue")
	if err := os.WriteFile(path, []byte(`signing: keystore_dir: "/keys"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if resolved != path || cfg.Signing.KeystoreDir != "/keys" {
		t.Errorf("Load() = %+v, %q", cfg.Signing, resolved)
	}

	_, _, err = NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(dir, "missing.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `build: jobs: 2`)
	t.Setenv("MOBUNDLE_BUILD_JOBS", "6")
	t.Setenv("MOBUNDLE_PUBLISH_BUCKET", "from-env")
	t.Setenv("MOBUNDLE_BUILD_STRICT_DEPENDENCIES", "true")

	cfg, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.Jobs != 6 {
		t.Errorf("Build.Jobs = %d, want 6 from environment", cfg.Build.Jobs)
	}
	if cfg.Publish.Bucket != "from-env" {
		t.Errorf("Publish.Bucket = %q", cfg.Publish.Bucket)
	}
	if !cfg.Build.StrictDependencies {
		t.Error("Build.StrictDependencies = false, want true from environment")
	}
}

func TestGenerateCUELoadsBack(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Android.SDKPath = "/sdk"
	cfg.Android.MinSDK = 24
	cfg.Apple.CodesignIdentity = "Apple Development: Jane"
	cfg.Build.Jobs = 4
	cfg.Build.Verify = true
	cfg.Publish.Bucket = "b"
	cfg.Publish.Endpoint = "http://localhost:9000"
	cfg.UI.ColorScheme = ColorSchemeDark

	generated := GenerateCUE(cfg)
	if strings.Contains(generated, "ndk_path") {
		t.Errorf("empty fields should be omitted:\n%s", generated)
	}

	dir := t.TempDir()
	writeConfigFile(t, dir, generated)
	loaded, _, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load(generated) error = %v\n%s", err, generated)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("loaded = %+v\nwant   %+v", loaded, cfg)
	}
}

func TestConfigDir(t *testing.T) {
	restore := SetConfigDirOverride("/tmp/override")
	if dir, err := ConfigDir(); err != nil || dir != "/tmp/override" {
		t.Errorf("ConfigDir() = %q, %v", dir, err)
	}
	restore()
	if configDirOverride != "" {
		t.Errorf("override %q survived restore", configDirOverride)
	}

	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		dir, err := ConfigDir()
		if err != nil {
			t.Fatal(err)
		}
		if dir != filepath.Join("/tmp/xdg", AppName) {
			t.Errorf("ConfigDir() = %q", dir)
		}
	}
}

func TestCreateDefaultConfigAndSave(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(SetConfigDirOverride(dir))

	path, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}

	cfg := DefaultConfig()
	cfg.Build.Namespace = "acme"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// A second CreateDefaultConfig must not clobber the saved file.
	if _, err := CreateDefaultConfig(); err != nil {
		t.Fatal(err)
	}
	loaded, _, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Build.Namespace != "acme" {
		t.Errorf("Build.Namespace = %q, want acme", loaded.Build.Namespace)
	}
}
