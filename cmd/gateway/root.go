package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"soulvan-gateway/internal/config"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/version"
)

const tuiLogFile = "gateway.log"

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "soulvan-gateway",
		Short:         "JSON-RPC and REST gateway in front of a Soulvan node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// load the env file when present; otherwise use environment as-is
			if _, statErr := os.Stat(envFile); statErr == nil {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			cfg := config.Load()

			log, closeLog := newLogger(cfg)
			defer closeLog()

			if err := serve(cmd.Context(), cfg, log); err != nil {
				log.Error("gateway stopped", "err", err)
				return err
			}
			return nil
		},
	}
	root.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})
	return root
}

// newLogger sends logs to a file while the dashboard owns the terminal.
func newLogger(cfg config.Config) (*logger.Logger, func()) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.TUI {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			w = f
			closeFn = func() { _ = f.Close() }
			fmt.Fprintf(os.Stderr, "Logs written to %s\n", tuiLogFile)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file, logs will go to stderr (may interfere with TUI): %v\n", err)
		}
	}
	return logger.NewWithWriter(cfg.Debug, w), closeFn
}
