package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var (
	setCmd = &cobra.Command{
		Use:           "set USER PROVIDER SECRET",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Store a provider credential for a user",
		Long: `
Usage: credvault token set USER PROVIDER SECRET

  Encrypt and store a credential, replacing any existing active credential
  for the same user and provider. When a prober is registered for the
  provider the secret is validated first and rejected secrets are not stored.

  Examples:

    Store a market-data API key:

      $ credvault token set u1 alpha_vantage MY4LPHAKEY --name "market data"
`,
		Args: cobra.ExactArgs(3),
		RunE: runSet,
	}

	setDisplayName    string
	setSkipValidation bool
)

func init() {
	setCmd.Flags().StringVar(&setDisplayName, "name", "", "Display name for the credential")
	setCmd.Flags().BoolVar(&setSkipValidation, "skip-validation", false, "Store without probing the provider")
}

func runSet(cmd *cobra.Command, args []string) error {
	userID, provider, rawSecret := args[0], args[1], args[2]
	ctx := cmd.Context()

	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	if !setSkipValidation {
		if _, ok := app.Registry.Lookup(provider); ok {
			window, err := app.Config.RateLimit.WindowDuration()
			if err != nil {
				return err
			}
			if !app.Limiter.Allow(userID, app.Config.RateLimit.MaxAttempts, window) {
				return fmt.Errorf("too many validation attempts for this user, try again later")
			}
			result := app.Dispatcher.TestTokenValidity(ctx, provider, rawSecret)
			if !result.Valid {
				return fmt.Errorf("credential rejected: %s", result.Error)
			}
			app.Limiter.Reset(userID)
		}
	}

	stored, err := app.Store.SetToken(ctx, userID, provider, rawSecret, setDisplayName)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Stored token %s for provider %s (created %s)\n",
		stored.ID, stored.Provider, stored.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
