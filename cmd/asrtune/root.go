package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"asrtune/logging"
)

// commandContext carries what every subcommand needs: the resolved
// logger and a fresh invocation id that tags log lines and history rows.
type commandContext struct {
	logger       *slog.Logger
	invocationID string
}

func newRootCommand() *cobra.Command {
	var logLevel string
	var logFormat string

	cmdCtx := &commandContext{}

	root := &cobra.Command{
		Use:           "asrtune",
		Short:         "Fine-tuning utilities for CTC speech recognizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Options{
				Level:  logLevel,
				Format: logFormat,
			})
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			cmdCtx.invocationID = uuid.NewString()
			cmdCtx.logger = logger.With("invocation", cmdCtx.invocationID[:8])
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newValidateCommand(cmdCtx))
	root.AddCommand(newWERCommand(cmdCtx))
	root.AddCommand(newCheckpointCommand(cmdCtx))

	return root
}
