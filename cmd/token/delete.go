package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var deleteCmd = &cobra.Command{
	Use:           "delete USER PROVIDER",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Deactivate a stored credential",
	Long: `
Usage: credvault token delete USER PROVIDER

  Soft-deactivate the active credential for the user and provider. The
  record remains in the table until a sweep removes it.
`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	userID, provider := args[0], args[1]
	ctx := cmd.Context()

	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	existed, err := app.Store.DeleteToken(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if !existed {
		fmt.Printf("No active credential for provider %s\n", provider)
		return nil
	}

	fmt.Printf("Deactivated credential for provider %s\n", provider)
	return nil
}
