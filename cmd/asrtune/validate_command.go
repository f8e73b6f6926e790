package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asrtune/config"
)

// newValidateCommand resolves a run configuration from defaults, file,
// and environment, validates it, and prints the result. Configuration
// problems fail here, before any run starts.
func newValidateCommand(ctx *commandContext) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate a run configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if cfg.ModelDef != "" {
				def, err := config.LoadModelDef(cfg.ModelDef)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "model: %s (%d labels + blank)\n",
					def.Name, len(def.Labels.Labels))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration OK")
			fmt.Fprintf(out, "  batch_size: %d (accumulation %d)\n", cfg.BatchSize, cfg.GradAccumSteps)
			fmt.Fprintf(out, "  lr_policy: %s (initial %g, warmup %g)\n", cfg.LRPolicy, cfg.LearningRate, cfg.WarmupFraction)
			if cfg.MaxSteps > 0 {
				fmt.Fprintf(out, "  budget: %d steps (overrides %d epochs)\n", cfg.MaxSteps, cfg.MaxEpochs)
			} else {
				fmt.Fprintf(out, "  budget: %d epochs\n", cfg.MaxEpochs)
			}
			if cfg.EvalPerEpoch {
				fmt.Fprintln(out, "  evaluation: per epoch")
			} else {
				fmt.Fprintf(out, "  evaluation: every %d steps\n", cfg.EvalInterval)
			}
			fmt.Fprintf(out, "  early stop patience: %d\n", cfg.EarlyStopPatience)
			fmt.Fprintf(out, "  checkpoints: latest=%s best=%s\n", cfg.LatestDir, cfg.BestDir)
			if cfg.InitCheckpoint != "" {
				fmt.Fprintf(out, "  init: %s (resume=%v, optimizer=%v)\n",
					cfg.InitCheckpoint, cfg.Resume, cfg.LoadOptimizerState)
			}
			fmt.Fprintf(out, "  precision: %s\n", cfg.Precision)

			ctx.logger.Info("configuration validated", "config", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file (defaults to $ASRTUNE_CONFIG)")
	return cmd
}
