package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/velmie/syncpipe"
	"github.com/velmie/syncpipe/kafka"
)

var errNoDrainSource = errors.New("worker needs drain.interval or kafka.brokers")

func newWorkerCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Drain on an interval and on Kafka drain requests until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if st.cfg.Drain.Interval <= 0 && !st.cfg.KafkaEnabled() {
				return errNoDrainSource
			}

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
			worker := syncpipe.NewWorker(drainer, nil,
				syncpipe.WithInterval(a.cfg.Drain.Interval),
				syncpipe.WithPassTimeout(a.cfg.Drain.PassTimeout),
				syncpipe.WithWorkerLogger(a.logger),
			)

			g, gctx := errgroup.WithContext(ctx)
			if a.cfg.Drain.Interval > 0 {
				g.Go(func() error { return worker.Run(gctx) })
			}
			if a.cfg.KafkaEnabled() {
				listener, err := kafka.NewListener(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID, worker, a.logger)
				if err != nil {
					return err
				}
				defer listener.Close()
				g.Go(func() error { return listener.Run(gctx) })
			}
			a.logger.Info("syncpipe worker started", "interval", a.cfg.Drain.Interval, "kafka", a.cfg.KafkaEnabled())
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("syncpipe worker stopped")

			return nil
		},
	}
}
