// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"

	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/infoplist"
	"github.com/mobundle/mobundle/internal/manifest"
	"github.com/mobundle/mobundle/internal/target"
)

// newManifestCommand creates `mobundle manifest`, which prints the
// descriptor a build would package without compiling anything.
func newManifestCommand(app *App) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the generated platform manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var androidFlags buildFlags
	androidCmd := &cobra.Command{
		Use:   "android",
		Short: "Print AndroidManifest.xml",
		Args:  cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, _ []string) error {
			return app.printAndroidManifest(cmd, &androidFlags)
		}),
	}
	registerManifestFlags(androidCmd, &androidFlags)
	androidCmd.Flags().IntVar(&androidFlags.minSDK, "min-sdk", 0, "minimum Android API level")

	var (
		appleFlags buildFlags
		format     string
		simulator  bool
	)
	appleCmd := &cobra.Command{
		Use:   "apple",
		Short: "Print Info.plist",
		Args:  cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, _ []string) error {
			return app.printInfoPlist(cmd, &appleFlags, format, simulator)
		}),
	}
	registerManifestFlags(appleCmd, &appleFlags)
	appleCmd.Flags().StringVar(&format, "format", "", "plist encoding: xml, binary, openstep or gnustep (default: project setting, then xml)")
	appleCmd.Flags().BoolVar(&simulator, "simulator", false, "generate for the iOS simulator")

	manifestCmd.AddCommand(androidCmd, appleCmd)
	return manifestCmd
}

func registerManifestFlags(cmd *cobra.Command, f *buildFlags) {
	cmd.Flags().StringVar(&f.manifestPath, "manifest-path", "", "path to Cargo.toml")
	cmd.Flags().BoolVarP(&f.release, "release", "r", false, "generate for the release profile")
	cmd.Flags().StringVar(&f.profile, "profile", "", "cargo profile")
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "application id namespace")
}

func (a *App) printAndroidManifest(cmd *cobra.Command, f *buildFlags) error {
	proj, err := a.loadProject(f.manifestPath)
	if err != nil {
		return err
	}
	r, err := resolveSettings(a.loadedConfig(), proj, target.Android, f, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	s := r.settings

	m := manifest.Generate(proj.Metadata.Android.Manifest, proj.Identity(s.Namespace), s.Profile,
		manifest.WithSDK(s.MinSDK, s.TargetSDK),
		manifest.WithLibName(proj.LibName))
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := manifest.Marshal(m)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *App) printInfoPlist(cmd *cobra.Command, f *buildFlags, format string, simulator bool) error {
	proj, err := a.loadProject(f.manifestPath)
	if err != nil {
		return err
	}
	r, err := resolveSettings(a.loadedConfig(), proj, target.Apple, f, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	s := r.settings

	pf := s.PlistFormat
	if format != "" {
		if pf, err = infoplist.ParseFormat(format); err != nil {
			return err
		}
	}

	p := infoplist.Generate(proj.Metadata.Apple.InfoPlist, proj.Identity(s.Namespace), infoplist.Options{
		Executable:       cmp.Or(firstOf(proj.BinNames), proj.Name),
		DeploymentTarget: s.DeploymentTarget,
		Simulator:        simulator,
	})
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := infoplist.Encode(p, pf)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
