package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
	"github.com/fintra/credvault/cmd/sweep"
	"github.com/fintra/credvault/cmd/token"
	"github.com/fintra/credvault/cmd/wipe"
)

var (
	flagConfig string

	credvaultCmd = &cobra.Command{
		Use:   "credvault",
		Short: "Credvault is an encrypted per-user credential store",
		Long: `Credvault keeps each user's third-party API secrets (bank tokens, exchange
keys, market-data keys) encrypted at rest, quarantines corrupted records,
and rate-limits validation attempts.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagConfig != "" {
				os.Setenv(helpers.EnvConfigPath, flagConfig)
			}
		},
	}
)

func Execute() {
	if err := credvaultCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	credvaultCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to the configuration file (can also use CREDVAULT_CONFIG env var)")

	credvaultCmd.AddCommand(token.TokenCmd)
	credvaultCmd.AddCommand(sweep.SweepCmd)
	credvaultCmd.AddCommand(wipe.WipeCmd)
}
