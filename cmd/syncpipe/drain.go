package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDrainCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run one drain pass over the pending backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, st)
			if err != nil {
				return err
			}
			defer a.Close()

			drainer, err := a.drainer(ctx)
			if err != nil {
				return err
			}
			result, err := drainer.Drain(ctx)
			if err != nil {
				return fmt.Errorf("drain: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d synced=%d failed=%d dead=%d skipped=%d\n",
				result.Scanned, result.Synced, result.Failed, result.Dead, result.Skipped)

			return nil
		},
	}
}
