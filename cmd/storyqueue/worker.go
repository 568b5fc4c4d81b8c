package main

import (
	"os"

	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/worker/config"
	"github.com/dmitrijs2005/storyqueue/internal/worker/server"
	"github.com/spf13/cobra"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Caching intermediary in front of the static asset origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			if err != nil {
				return err
			}

			app, err := server.NewApp(cmd.Context(), cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}
