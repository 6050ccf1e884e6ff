package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe"
)

func newRequeueCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Return a dead-lettered sync failure to the pending backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse id: %w", err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, st)
			if err != nil {
				return err
			}
			defer a.Close()

			requeuer, ok := a.store.(syncpipe.Requeuer)
			if !ok {
				return fmt.Errorf("store %s cannot requeue", a.cfg.Store.Driver)
			}
			if err := requeuer.Requeue(ctx, id); err != nil {
				return fmt.Errorf("requeue %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)

			return nil
		},
	}
}
