package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/cmd"
	"github.com/mattsolo1/grove-voice/cmd/config"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

var (
	svc       *service.Service
	logCloser io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ev",
		Short:         "EaseVoice client: namespaces, pipeline jobs and voice cloning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// This runs once before any subcommand
		config.InitConfig()
		settings, err := config.Load()
		if err != nil {
			return err
		}
		logCloser, err = config.InitLogging(settings)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if !cmd.NeedsService(c) {
			return nil
		}
		svc, err = config.InitService()
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		return shutdown()
	}

	rootCmd.AddCommand(cmd.NewNamespaceCmd(&svc))
	rootCmd.AddCommand(cmd.NewFilesCmd(&svc))
	rootCmd.AddCommand(cmd.NewStartCmd(&svc))
	rootCmd.AddCommand(cmd.NewStatusCmd(&svc))
	rootCmd.AddCommand(cmd.NewRefineCmd(&svc))
	rootCmd.AddCommand(cmd.NewModelsCmd(&svc))
	rootCmd.AddCommand(cmd.NewCloneCmd(&svc))
	rootCmd.AddCommand(cmd.NewResultsCmd(&svc))
	rootCmd.AddCommand(cmd.NewRecordCmd(&svc))
	rootCmd.AddCommand(cmd.NewPlayCmd(&svc))
	rootCmd.AddCommand(cmd.NewTuiCmd(&svc))
	rootCmd.AddCommand(cmd.NewJobsCmd(&svc))
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = shutdown()
		os.Exit(1)
	}
}

// shutdown releases the service and the log file. Safe to call twice.
func shutdown() error {
	var err error
	if svc != nil {
		err = svc.Close()
		svc = nil
	}
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
	return err
}
