// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for mobundle.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mobundle",
		Short: "Package Rust crates as Android and iOS apps",
		Long: TitleStyle.Render("mobundle") + SubtitleStyle.Render(" - Package Rust crates as Android and iOS apps") + `

mobundle cross-compiles a Rust package for mobile targets, collects the
shared libraries it needs, generates the platform manifest and produces a
signed APK, app bundle or IPA.

Project settings live in Cargo.toml under [package.metadata.mobundle].

` + SubtitleStyle.Render("Examples:") + `
  mobundle build android              Debug APK for the default ABI
  mobundle build android --release -t arm64-v8a -t x86_64
  mobundle build apple --release      Signed .ipa for iOS devices
  mobundle manifest android           Print the generated AndroidManifest.xml
  mobundle doctor                     Check the installed toolchains`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mobundle/config.cue)")

	rootCmd.AddCommand(
		newBuildCommand(app),
		newManifestCommand(app),
		newTargetsCommand(app),
		newDoctorCommand(app),
		newKeystoreCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	// The interrupt cancels the command context, which kills running tools.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		if exitErr, ok := errors.AsType[*ExitError](err); ok {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
