package wipe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fintra/credvault/cmd/helpers"
	"github.com/fintra/credvault/config"
	"github.com/fintra/credvault/logger"
	"github.com/fintra/credvault/storage"
)

var (
	WipeCmd = &cobra.Command{
		Use:           "wipe",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Destroy the credential snapshot entirely",
		Long: `
Usage: credvault wipe [--force]

  Remove the durable credential snapshot for every user. This is the remedy
  for systemic corruption, e.g. after a master-secret rotation made every
  stored envelope permanently undecryptable.
`,
		RunE: runWipe,
	}

	wipeForce bool
)

func init() {
	WipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Skip the confirmation prompt")
}

func runWipe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(helpers.ConfigPath())
	if err != nil {
		return err
	}

	if !wipeForce {
		fmt.Print("This permanently destroys every stored credential. Type 'wipe' to continue: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "wipe" {
			return fmt.Errorf("aborted")
		}
	}

	log := logger.NewZerologLogger(&logger.Config{
		Level:       logger.ParseLogLevel(cfg.LogLevel),
		Outputs:     []io.Writer{os.Stderr},
		Environment: "production",
		Subsystem:   "credvault",
	})
	defer log.Close()

	backend, err := storage.NewBackend(cfg.Storage.Type, cfg.Storage.Config(), log.WithSubsystem("storage"))
	if err != nil {
		return err
	}

	if err := backend.Wipe(cmd.Context()); err != nil {
		return fmt.Errorf("wipe failed: %w", err)
	}

	fmt.Println("Credential snapshot destroyed")
	return nil
}
