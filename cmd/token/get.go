package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var getCmd = &cobra.Command{
	Use:           "get USER PROVIDER",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Resolve a stored credential to its plaintext",
	Long: `
Usage: credvault token get USER PROVIDER

  Decrypt and print the active credential for the user and provider. When
  the stored envelope fails to decrypt the record is quarantined and the
  command reports that the account needs to be reconnected.
`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	userID, provider := args[0], args[1]
	ctx := cmd.Context()

	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	secret, err := app.Store.GetToken(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}
	if secret == "" {
		return fmt.Errorf("no usable credential for provider %s; reconnect the account", provider)
	}

	fmt.Println(secret)
	return nil
}
