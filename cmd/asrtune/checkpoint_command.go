package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"asrtune/checkpoints"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	ckptCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Checkpoint utilities",
	}
	ckptCmd.AddCommand(newCheckpointInspectCommand())
	return ckptCmd
}

// newCheckpointInspectCommand summarizes a checkpoint file: epoch,
// parameter tensors, and whether optimizer state is present.
func newCheckpointInspectCommand() *cobra.Command {
	var showKeys bool

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Summarize a checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckpt, err := checkpoints.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "epoch: %d\n", ckpt.Epoch)
			if ckpt.Metadata.RunID != "" {
				fmt.Fprintf(out, "run: %s\n", ckpt.Metadata.RunID)
			}
			if !ckpt.Metadata.CreatedAt.IsZero() {
				fmt.Fprintf(out, "created: %s\n", ckpt.Metadata.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			}
			if ckpt.Metadata.Description != "" {
				fmt.Fprintf(out, "description: %s\n", ckpt.Metadata.Description)
			}

			params := 0
			for _, values := range ckpt.ModelState {
				params += len(values)
			}
			fmt.Fprintf(out, "model tensors: %d (%d parameters)\n", len(ckpt.ModelState), params)
			if len(ckpt.OptimizerState) > 0 {
				fmt.Fprintf(out, "optimizer tensors: %d\n", len(ckpt.OptimizerState))
			} else {
				fmt.Fprintln(out, "optimizer state: absent")
			}

			if showKeys {
				keys := make([]string, 0, len(ckpt.ModelState))
				for key := range ckpt.ModelState {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(out, "  %s [%d]\n", key, len(ckpt.ModelState[key]))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showKeys, "keys", false, "list model state keys")
	return cmd
}
