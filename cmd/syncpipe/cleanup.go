package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe/mysql"
	"github.com/velmie/syncpipe/postgres"
)

type cleaner interface {
	Run(ctx context.Context) error
}

func newCleanupCmd(st *state) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge dead-lettered rows older than cleanup.retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, st)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				runner  cleaner
				runOnce func(context.Context) (int64, error)
			)
			switch {
			case a.db != nil:
				m, err := mysql.NewCleanupMaintainer(a.db, mysql.CleanupMaintainerConfig{
					Table:      a.cfg.Store.Table,
					Retention:  a.cfg.Cleanup.Retention,
					CheckEvery: a.cfg.Cleanup.CheckEvery,
					Limit:      a.cfg.Cleanup.Limit,
					Logger:     a.logger,
				})
				if err != nil {
					return fmt.Errorf("init maintainer: %w", err)
				}
				runner = m
				runOnce = func(ctx context.Context) (int64, error) {
					res, err := m.Ensure(ctx)

					return res.Dead, err
				}
			default:
				p, err := postgres.NewPurger(a.store.(*postgres.Store), postgres.PurgerConfig{
					Retention:  a.cfg.Cleanup.Retention,
					CheckEvery: a.cfg.Cleanup.CheckEvery,
					Limit:      a.cfg.Cleanup.Limit,
					Logger:     a.logger,
				})
				if err != nil {
					return fmt.Errorf("init purger: %w", err)
				}
				runner = p
				runOnce = p.Purge
			}

			if once {
				n, err := runOnce(ctx)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dead rows removed: %d\n", n)

				return nil
			}

			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run cleanup: %w", err)
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run once and exit")

	return cmd
}
