package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe"
)

func newBacklogCmd(st *state) *cobra.Command {
	var dead bool

	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Show the pending backlog size and, with --dead, the dead-lettered rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, st)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if counter, ok := a.store.(syncpipe.BacklogCounter); ok {
				count, err := counter.PendingCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pending: %d\n", count)
			}
			if !dead {
				return nil
			}

			lister, ok := a.store.(syncpipe.DeadLister)
			if !ok {
				return fmt.Errorf("store %s cannot list dead rows", a.cfg.Store.Driver)
			}
			rows, err := lister.ListDead(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE REQUEST\tATTEMPTS\tLAST ATTEMPT\tERROR")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					row.ID, row.SourceRequestID, row.SyncAttempts, row.LastAttemptAt.Format(time.RFC3339), row.ErrorMessage)
			}

			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&dead, "dead", false, "List dead-lettered rows")

	return cmd
}
