package main

import (
	"os"

	"github.com/dmitrijs2005/storyqueue/internal/devapi"
	"github.com/dmitrijs2005/storyqueue/internal/devapi/config"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/spf13/cobra"
)

func newDevAPICommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "Local stand-in for the remote story API",
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
			return devapi.NewApp(cfg, logger).Run(cmd.Context())
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}
