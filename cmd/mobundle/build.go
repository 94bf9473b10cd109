// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/internal/pipeline"
	"github.com/mobundle/mobundle/internal/project"
	"github.com/mobundle/mobundle/internal/publish"
	"github.com/mobundle/mobundle/internal/target"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/internal/watch"
)

// newBuildCommand creates the `mobundle build` command tree.
func newBuildCommand(app *App) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build a signed mobile package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var androidFlags buildFlags
	androidCmd := &cobra.Command{
		Use:   "android [-- cargo args...]",
		Short: "Build a signed APK or app bundle",
		Long: `Build a signed APK (or, with --bundle, an Android App Bundle).

Every requested ABI is cross-compiled with the NDK clang, the shared
libraries the crate needs are collected, AndroidManifest.xml is generated
from Cargo.toml and the package is aligned and signed. Without a keystore in
[package.metadata.mobundle.android.keystore] the debug key is used.`,
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return app.runBuild(cmd, &androidFlags, args, app.buildAndroid)
		}),
	}
	androidFlags.register(androidCmd.Flags(), target.Android)

	var appleFlags buildFlags
	appleCmd := &cobra.Command{
		Use:   "apple [-- cargo args...]",
		Short: "Build a signed iOS app (.ipa)",
		Long: `Build a signed .ipa for iOS devices or the simulator.

Several device architectures are merged into one executable with lipo.
Device and simulator targets cannot be mixed in one build.`,
		RunE: app.run(func(cmd *cobra.Command, args []string) error {
			return app.runBuild(cmd, &appleFlags, args, app.buildApple)
		}),
	}
	appleFlags.register(appleCmd.Flags(), target.Apple)

	buildCmd.AddCommand(androidCmd, appleCmd)
	return buildCmd
}

// runBuild runs build once and, with --watch, again after every source
// change until the command is interrupted.
func (a *App) runBuild(cmd *cobra.Command, f *buildFlags, cargoArgs []string, build func(*cobra.Command, *buildFlags, []string) error) error {
	err := build(cmd, f, cargoArgs)
	if !f.watch {
		return err
	}

	proj, loadErr := a.loadProject(f.manifestPath)
	if loadErr != nil {
		return loadErr
	}
	if err != nil {
		_ = a.fail(err)
	}

	patterns, ignores := watchFilters(proj, a.LookupEnv)
	w, err := watch.New(proj.Dir,
		watch.WithPatterns(patterns...),
		watch.WithIgnore(ignores...),
		watch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.logger.Info("watching for changes, press Ctrl+C to stop", "dir", proj.Dir)
	return w.Run(cmd.Context(), func(context.Context, []string) error {
		return build(cmd, f, cargoArgs)
	})
}

// watchFilters returns the extra patterns and ignores for watching proj:
// resource and asset directories inside the crate are watched, and a
// CARGO_TARGET_DIR inside the crate is ignored.
func watchFilters(proj *project.Project, lookupEnv func(string) (string, bool)) (patterns, ignores []string) {
	for _, dir := range []string{
		proj.Metadata.Android.Resources, proj.Metadata.Android.Assets,
		proj.Metadata.Apple.Resources, proj.Metadata.Apple.Assets,
	} {
		if dir == "" {
			continue
		}
		if rel := relTo(proj.Dir, proj.Resolve(dir)); filepath.IsLocal(rel) {
			patterns = append(patterns, filepath.ToSlash(rel)+"/**")
		}
	}
	if rel := relTo(proj.Dir, proj.TargetDir(lookupEnv)); filepath.IsLocal(rel) {
		ignores = append(ignores, filepath.ToSlash(rel)+"/**")
	}
	return patterns, ignores
}

func (a *App) buildAndroid(cmd *cobra.Command, f *buildFlags, cargoArgs []string) error {
	ctx := cmd.Context()
	bc, targets, err := a.buildContext(cmd, f, target.Android, cargoArgs)
	if err != nil {
		return err
	}

	cfg := a.loadedConfig()
	tc, err := toolchain.DiscoverAndroid(toolchain.AndroidOptions{
		SDKPath:   cfg.Android.SDKPath,
		NDKPath:   cfg.Android.NDKPath,
		LookupEnv: a.LookupEnv,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("android toolchain", "sdk", tc.SDK().Root, "ndk", tc.NDK().Root, "ndk_version", tc.NDK().VersionString())

	opts, err := a.pipelineOptions(ctx, f)
	if err != nil {
		return err
	}
	p, err := pipeline.NewAndroidPipeline(bc, a.Runner, tc, opts...)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx, targets)
	printReport(a.stdout, report, bc)
	return err
}

func (a *App) buildApple(cmd *cobra.Command, f *buildFlags, cargoArgs []string) error {
	ctx := cmd.Context()
	bc, targets, err := a.buildContext(cmd, f, target.Apple, cargoArgs)
	if err != nil {
		return err
	}

	tc, err := toolchain.DiscoverApple(ctx, toolchain.AppleOptions{
		DeveloperDir: a.loadedConfig().Apple.DeveloperDir,
		LookupEnv:    a.LookupEnv,
		Runner:       a.Runner,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("xcode", "developer_dir", tc.DeveloperDir())

	opts, err := a.pipelineOptions(ctx, f)
	if err != nil {
		return err
	}
	report, err := pipeline.NewApplePipeline(bc, a.Runner, tc, opts...).Run(ctx, targets)
	printReport(a.stdout, report, bc)
	return err
}

// buildContext loads the project and merges every settings source.
func (a *App) buildContext(cmd *cobra.Command, f *buildFlags, p target.Platform, cargoArgs []string) (*pipeline.BuildContext, []target.Target, error) {
	proj, err := a.loadProject(f.manifestPath)
	if err != nil {
		return nil, nil, err
	}
	r, err := resolveSettings(a.loadedConfig(), proj, p, f, cmd.Flags().Changed)
	if err != nil {
		return nil, nil, err
	}
	r.settings.CargoArgs = cargoArgs
	return pipeline.NewBuildContext(proj, r.settings, a.LookupEnv), r.targets, nil
}

func (a *App) pipelineOptions(ctx context.Context, f *buildFlags) ([]pipeline.Option, error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithLookupEnv(a.LookupEnv),
	}
	if !f.publish {
		return opts, nil
	}

	pc := a.loadedConfig().Publish
	pub, err := a.NewPublisher(ctx, publish.Config{
		Bucket:   pc.Bucket,
		Prefix:   pc.Prefix,
		Region:   pc.Region,
		Endpoint: pc.Endpoint,
	}, publish.WithLogger(a.logger))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("set up publishing").
			WithResource(pc.Bucket).
			WithIssue(issue.PublishFailedId).
			WithSuggestion("Set publish.bucket in the config file or MOBUNDLE_PUBLISH_BUCKET").
			Wrap(err).
			BuildError()
	}
	return append(opts, pipeline.WithPublisher(pub)), nil
}

// printReport summarizes a build. It also runs after a late failure so the
// artifacts left on disk are visible.
func printReport(w io.Writer, report *pipeline.Report, bc *pipeline.BuildContext) {
	if report == nil {
		return
	}
	id := bc.Identity()

	for _, m := range report.Missing {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("!"), m.Error())
	}

	if len(report.Libraries) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(tableBorderStyle).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return tableHeaderStyle
				}
				return tableCellStyle
			}).
			Headers("ABI", "LIBRARY", "SOURCE")
		for _, lib := range report.Libraries {
			t.Row(lib.Target.ABI(), lib.Name, relTo(bc.WorkspaceRoot(), lib.Path))
		}
		fmt.Fprintln(w, t.Render())
	}

	if report.Artifact == "" {
		return
	}
	fmt.Fprintf(w, "%s %s %s %s\n",
		SuccessStyle.Render("✓"),
		TitleStyle.Render(id.Name),
		SubtitleStyle.Render(fmt.Sprintf("%s (%s)", id.VersionName(), bc.Profile())),
		CmdStyle.Render(report.Artifact))
	if v := report.Verification; v != nil {
		for _, fp := range v.Fingerprints {
			fmt.Fprintf(w, "  %s %s\n", VerboseStyle.Render("certificate sha256"), fp)
		}
	}
	if up := report.Upload; up != nil {
		fmt.Fprintf(w, "  %s s3://%s/%s (%d bytes)\n", VerboseStyle.Render("published"), up.Bucket, up.Key, up.Size)
	}
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && filepath.IsLocal(rel) {
		return rel
	}
	return path
}
