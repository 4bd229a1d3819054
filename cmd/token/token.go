package token

import (
	"github.com/spf13/cobra"
)

var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage stored provider credentials",
	Long: `
Usage: credvault token <subcommand>

  Store, resolve, list and delete per-user provider credentials in the
  locally configured vault.
`,
}

func init() {
	TokenCmd.AddCommand(setCmd)
	TokenCmd.AddCommand(getCmd)
	TokenCmd.AddCommand(listCmd)
	TokenCmd.AddCommand(deleteCmd)
	TokenCmd.AddCommand(clearCmd)
}
