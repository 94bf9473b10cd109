// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mobundle/mobundle/internal/issue"
	"github.com/mobundle/mobundle/internal/signer"
)

func newKeystoreCommand(app *App) *cobra.Command {
	keystoreCmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage the Android debug keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var (
		dir         string
		fingerprint bool
	)
	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the debug keystore if it does not exist",
		Long: `Create the debug keystore that signs builds without a release keystore.
It lives in signing.keystore_dir (default ~/.android) and is never replaced.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(cmd *cobra.Command, _ []string) error {
			repo := signer.NewKeystoreRepository(app.Runner,
				signer.WithKeystoreDir(cmp.Or(dir, app.loadedConfig().Signing.KeystoreDir)),
				signer.WithKeystoreLogger(app.logger))
			key, err := repo.LoadOrCreate(cmd.Context(), nil)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("create debug keystore").
					WithIssue(issue.SigningFailedId).
					WithSuggestion("Make sure a JDK is installed and keytool is on PATH").
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(key.Path))
			if !fingerprint {
				return nil
			}
			fp, err := repo.Fingerprint(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "  %s %s\n", VerboseStyle.Render("certificate sha256"), fp)
			return nil
		}),
	}
	ensureCmd.Flags().StringVar(&dir, "dir", "", "keystore directory (overrides signing.keystore_dir)")
	ensureCmd.Flags().BoolVar(&fingerprint, "fingerprint", false, "also print the certificate SHA-256 fingerprint")

	keystoreCmd.AddCommand(ensureCmd)
	return keystoreCmd
}
