// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/target"
)

func newTargetsCommand(app *App) *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the supported targets",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			annotationConfigOptional: "true",
		},
		RunE: app.run(func(_ *cobra.Command, _ []string) error {
			platforms := []target.Platform{target.Android, target.Apple}
			if platform != "" {
				p := target.Platform(platform)
				if p != target.Android && p != target.Apple {
					return fmt.Errorf("unknown platform %q (valid: android, apple)", platform)
				}
				platforms = []target.Platform{p}
			}
			fmt.Fprintln(app.stdout, targetTable(platforms))
			return nil
		}),
	}
	cmd.Flags().StringVar(&platform, "platform", "", "only list targets of this platform (android or apple)")
	return cmd
}

// targetTable renders the catalogue; the platform default is starred.
func targetTable(platforms []target.Platform) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("PLATFORM", "ABI", "TRIPLE", "DEFAULT")
	for _, p := range platforms {
		def := target.Default(p)
		for _, tg := range target.All(p) {
			mark := ""
			if tg == def {
				mark = "*"
			}
			t.Row(string(p), tg.ABI(), tg.Triple(), mark)
		}
	}
	return t.Render()
}
