package main

import (
	"github.com/dmitrijs2005/storyqueue/internal/client/cli"
	"github.com/dmitrijs2005/storyqueue/internal/client/config"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/spf13/cobra"
)

func newClientCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive story client with an offline draft queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}

			// the REPL owns the terminal, so logs go to a file
			w, closeLog, err := openLogFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, w)
			if err != nil {
				return err
			}

			app, err := cli.NewApp(cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}
