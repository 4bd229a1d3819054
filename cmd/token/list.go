package token

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var (
	listCmd = &cobra.Command{
		Use:           "list USER",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "List a user's active credentials",
		Long: `
Usage: credvault token list USER

  List metadata for the user's active credentials. Envelopes and plaintext
  secrets are never included.
`,
		Args: cobra.ExactArgs(1),
		RunE: runList,
	}

	listOutputFormat string
)

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format: table, json")
}

func runList(cmd *cobra.Command, args []string) error {
	userID := args[0]
	ctx := cmd.Context()

	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	tokens := app.Store.ListTokens(userID)

	if listOutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tokens)
	}

	if len(tokens) == 0 {
		fmt.Println("No active credentials")
		return nil
	}

	fmt.Printf("%-28s %-16s %-20s %s\n", "ID", "PROVIDER", "NAME", "CREATED")
	for _, t := range tokens {
		fmt.Printf("%-28s %-16s %-20s %s\n",
			t.ID, t.Provider, t.DisplayName, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
