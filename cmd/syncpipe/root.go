package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/velmie/syncpipe/cmd/internal/config"
)

type state struct {
	cfgPath string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "syncpipe",
		Short: "Operate the spreadsheet sync failure backlog",
		Long: `syncpipe drains sync failures recorded by the request handlers into the spreadsheet.
Settings come from .env, an optional YAML file and SYNCPIPE_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.cfgPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.logger = newLogger(cmd.ErrOrStderr(), cfg.Log)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&st.cfgPath, "config", "", "YAML config file")

	root.AddCommand(
		newSyncCmd(st),
		newDrainCmd(st),
		newWorkerCmd(st),
		newSchemaCmd(st),
		newCleanupCmd(st),
		newRequeueCmd(st),
		newBacklogCmd(st),
	)

	return root
}
