package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe"
	"github.com/velmie/syncpipe/kafka"
)

func newSyncCmd(st *state) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one payload inline and record it for draining if the sink fails",
		Long: `sync reads a JSON payload from --file or stdin and appends it to the spreadsheet
with the configured retry policy. A payload that still fails is recorded in the store,
and a drain is requested over Kafka when brokers are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, st)
			if err != nil {
				return err
			}
			defer a.Close()

			sink, err := a.sink(ctx)
			if err != nil {
				return err
			}
			trigger, closeTrigger, err := a.trigger()
			if err != nil {
				return err
			}
			defer closeTrigger()

			executor := syncpipe.NewExecutor(sink,
				syncpipe.WithAttempts(a.cfg.Retry.Attempts),
				syncpipe.WithBackoff(syncpipe.Backoff{
					Initial:    a.cfg.Retry.InitialDelay,
					Multiplier: a.cfg.Retry.Multiplier,
					Max:        a.cfg.Retry.MaxDelay,
				}),
				syncpipe.WithExecutorLogger(a.logger),
				syncpipe.WithExecutorMetrics(a.metrics),
			)
			recorder := syncpipe.NewRecorder(a.store, trigger,
				syncpipe.WithRecorderLogger(a.logger),
				syncpipe.WithRecorderMetrics(a.metrics),
			)
			drainer, err := a.drainer(ctx)
			if err != nil {
				return err
			}
			pipeline := syncpipe.NewPipeline(executor, recorder, drainer)

			if err := pipeline.Sync(ctx, payload.ID, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", payload.ID)

			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload JSON file (default stdin)")

	return cmd
}

func readPayload(stdin io.Reader, file string) (syncpipe.Payload, error) {
	r := stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return syncpipe.Payload{}, fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	var payload syncpipe.Payload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return syncpipe.Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return syncpipe.Payload{}, err
	}

	return payload, nil
}

// trigger publishes drain requests to Kafka when configured. Otherwise the
// recorded failure waits for the next worker tick.
func (a *app) trigger() (syncpipe.Trigger, func(), error) {
	if !a.cfg.KafkaEnabled() {
		logOnly := syncpipe.TriggerFunc(func(_ context.Context, req syncpipe.DrainRequest) error {
			a.logger.Info("syncpipe drain deferred to worker", "source_request_id", req.SourceRequestID)

			return nil
		})

		return logOnly, func() {}, nil
	}

	publisher, err := kafka.NewPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("syncpipe close publisher", "err", err)
		}
	}, nil
}
