package sweep

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
)

var (
	SweepCmd = &cobra.Command{
		Use:           "sweep",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Remove inactive (deleted or quarantined) credentials",
		Long: `
Usage: credvault sweep --user USER
       credvault sweep --all

  Hard-remove inactive credential records. --user sweeps one user; --all
  sweeps every known user and requires allow_global_reset = true in the
  configuration.
`,
		RunE: runSweep,
	}

	sweepUser string
	sweepAll  bool
)

func init() {
	SweepCmd.Flags().StringVar(&sweepUser, "user", "", "Sweep a single user")
	SweepCmd.Flags().BoolVar(&sweepAll, "all", false, "Sweep every known user")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepAll == (sweepUser != "") {
		return fmt.Errorf("exactly one of --user or --all is required")
	}

	ctx := cmd.Context()
	app, err := helpers.Open(ctx, helpers.ConfigPath())
	if err != nil {
		return err
	}
	defer app.Close()

	var removed int
	if sweepAll {
		removed, err = app.Store.ResetAllCorruptedTokens(ctx)
	} else {
		removed, err = app.Store.CleanupCorruptedTokens(ctx, sweepUser)
	}
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Printf("Removed %d inactive credential record(s)\n", removed)
	return nil
}
