// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/config"
	"github.com/mobundle/mobundle/internal/toolchain"
	"github.com/mobundle/mobundle/pkg/platform"
)

var errDoctorFailed = errors.New("one or more toolchain checks failed")

type (
	checkStatus int

	// check is one row of the doctor report.
	check struct {
		component string
		status    checkStatus
		detail    string
	}
)

const (
	checkOK checkStatus = iota
	checkSkipped
	checkFailed
)

func newDoctorCommand(app *App) *cobra.Command {
	var goos string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the Android and Xcode toolchains",
		Long: `Locate the Android SDK, NDK, build-tools and Xcode the way a build would,
and report what was found. Exits non-zero when a toolchain is broken.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, _ []string) error {
			checks := app.doctorChecks(cmd, goos)
			fmt.Fprintln(app.stdout, doctorTable(checks))
			for _, c := range checks {
				if c.status == checkFailed {
					return &ExitError{Code: 1, Err: errDoctorFailed}
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&goos, "host", runtime.GOOS, "host OS layout to check")
	_ = cmd.Flags().MarkHidden("host")
	return cmd
}

func (a *App) doctorChecks(cmd *cobra.Command, goos string) []check {
	cfg := a.loadedConfig()
	var checks []check

	android, err := toolchain.DiscoverAndroid(toolchain.AndroidOptions{
		SDKPath:   cfg.Android.SDKPath,
		NDKPath:   cfg.Android.NDKPath,
		LookupEnv: a.LookupEnv,
		GOOS:      goos,
	})
	if err != nil {
		checks = append(checks, check{"Android", checkFailed, err.Error()})
	} else {
		sdk, ndk := android.SDK(), android.NDK()
		checks = append(checks,
			check{string(toolchain.ComponentSDK), checkOK, sdk.Root},
			check{string(toolchain.ComponentBuildTools), checkOK, android.BuildToolsDir()},
			check{string(toolchain.ComponentNDK), checkOK, ndk.Root + " (" + ndk.VersionString() + ")"},
		)
		if level, err := android.HighestPlatform(); err != nil {
			checks = append(checks, check{string(toolchain.ComponentPlatform), checkFailed, err.Error()})
		} else {
			checks = append(checks, check{string(toolchain.ComponentPlatform), checkOK, "android-" + strconv.Itoa(level)})
		}
		for _, tool := range []string{"aapt2", "zipalign", "apksigner"} {
			if p, err := android.BuildTool(tool); err != nil {
				checks = append(checks, check{tool, checkFailed, err.Error()})
			} else {
				checks = append(checks, check{tool, checkOK, p})
			}
		}
	}
	checks = append(checks, bundletoolCheck(cfg))

	if goos != platform.Darwin {
		if _, set := a.LookupEnv("DEVELOPER_DIR"); !set && cfg.Apple.DeveloperDir == "" {
			return append(checks, check{string(toolchain.ComponentXcode), checkSkipped, "requires macOS"})
		}
	}
	apple, err := toolchain.DiscoverApple(cmd.Context(), toolchain.AppleOptions{
		DeveloperDir: cfg.Apple.DeveloperDir,
		LookupEnv:    a.LookupEnv,
		Runner:       a.Runner,
	})
	if err != nil {
		return append(checks, check{string(toolchain.ComponentXcode), checkFailed, err.Error()})
	}
	checks = append(checks, check{string(toolchain.ComponentXcode), checkOK, apple.DeveloperDir()})
	for _, sim := range []bool{false, true} {
		name := string(toolchain.ComponentAppleSDK)
		if sim {
			name += " (simulator)"
		}
		if info, err := apple.SDK(sim); err != nil {
			checks = append(checks, check{name, checkFailed, err.Error()})
		} else {
			checks = append(checks, check{name, checkOK, info.Root + " (" + info.VersionString() + ")"})
		}
	}
	return checks
}

// bundletoolCheck is informational; bundletool is only needed for --bundle.
func bundletoolCheck(cfg *config.Config) check {
	path := cfg.Android.BundletoolPath
	if path == "" {
		return check{"bundletool", checkSkipped, "android.bundletool_path not set"}
	}
	if _, err := os.Stat(path); err != nil {
		return check{"bundletool", checkFailed, err.Error()}
	}
	return check{"bundletool", checkOK, path}
}

func doctorTable(checks []check) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 && row >= 0 && row < len(checks) {
				return tableCellStyle.Foreground(checks[row].status.color())
			}
			return tableCellStyle
		}).
		Headers("COMPONENT", "STATUS", "DETAIL")
	for _, c := range checks {
		t.Row(c.component, c.status.String(), c.detail)
	}
	return t.Render()
}

func (s checkStatus) String() string {
	switch s {
	case checkOK:
		return "ok"
	case checkSkipped:
		return "skipped"
	default:
		return "missing"
	}
}

func (s checkStatus) color() lipgloss.Color {
	switch s {
	case checkOK:
		return ColorSuccess
	case checkSkipped:
		return ColorMuted
	default:
		return ColorError
	}
}
