package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var clearCmd = &cobra.Command{
	Use:           "clear USER",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Remove every credential record for a user",
	Long: `
Usage: credvault token clear USER

  Hard-remove every credential record for the user, in any state. This is an
  emergency recovery operation; the user has to reconnect every account
  afterwards.
`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	userID := args[0]
	ctx := cmd.Context()

	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	removed, err := app.Store.ClearAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}

	fmt.Printf("Removed %d credential record(s)\n", removed)
	return nil
}
