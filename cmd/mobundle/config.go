// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/config"
)

// newConfigCommand creates the `mobundle config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mobundle configuration",
		Long: `Manage mobundle configuration.

Configuration is stored in:
  - Linux: ~/.config/mobundle/config.cue
  - macOS: ~/Library/Application Support/mobundle/config.cue
  - Windows: %APPDATA%\mobundle\config.cue

Every key can be overridden with a MOBUNDLE_<SECTION>_<KEY> environment
variable, e.g. MOBUNDLE_ANDROID_SDK_PATH.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	optional := map[string]string{annotationConfigOptional: "true"}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ *cobra.Command, _ []string) error {
			showConfig(app)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create the default configuration file",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: app.run(func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: app.run(func(_ *cobra.Command, _ []string) error {
			if app.configFile != "" {
				fmt.Fprintln(app.stdout, app.configFile)
				return nil
			}
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(app.loadedConfig()))
			return nil
		}),
	})

	return cfgCmd
}

func showConfig(app *App) {
	cfg := app.loadedConfig()
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if app.cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), app.cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	sections := []struct {
		name   string
		fields [][2]string
	}{
		{"android", [][2]string{
			{"sdk_path", cfg.Android.SDKPath},
			{"ndk_path", cfg.Android.NDKPath},
			{"bundletool_path", cfg.Android.BundletoolPath},
			{"java_path", cfg.Android.JavaPath},
			{"min_sdk", strconv.Itoa(cfg.Android.MinSDK)},
		}},
		{"apple", [][2]string{
			{"developer_dir", cfg.Apple.DeveloperDir},
			{"deployment_target", cfg.Apple.DeploymentTarget},
			{"codesign_identity", cfg.Apple.CodesignIdentity},
		}},
		{"build", [][2]string{
			{"jobs", strconv.Itoa(cfg.Build.Jobs)},
			{"keep_going", strconv.FormatBool(cfg.Build.KeepGoing)},
			{"strict_dependencies", strconv.FormatBool(cfg.Build.StrictDependencies)},
			{"namespace", cfg.Build.Namespace},
			{"verify", strconv.FormatBool(cfg.Build.Verify)},
		}},
		{"signing", [][2]string{
			{"keystore_dir", cfg.Signing.KeystoreDir},
		}},
		{"publish", [][2]string{
			{"bucket", cfg.Publish.Bucket},
			{"prefix", cfg.Publish.Prefix},
			{"region", cfg.Publish.Region},
			{"endpoint", cfg.Publish.Endpoint},
		}},
		{"ui", [][2]string{
			{"color_scheme", cfg.UI.ColorScheme.String()},
			{"verbose", strconv.FormatBool(cfg.UI.Verbose)},
		}},
	}
	for _, sec := range sections {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", CmdStyle.Render(sec.name))
		for _, f := range sec.fields {
			value := SuccessStyle.Render(f[1])
			if f[1] == "" {
				value = SubtitleStyle.Render("(unset)")
			}
			fmt.Fprintf(w, "  %s: %s\n", f[0], value)
		}
	}
}
