package main

import (
	"io"
	"os"

	"github.com/dmitrijs2005/storyqueue/internal/filex"
	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "storyqueue",
		Short:         "Offline-first story client, caching worker and dev story API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (JSON, YAML or TOML)")

	cmd.AddCommand(newClientCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newDevAPICommand(opts))

	return cmd
}

// openLogFile opens path for appending; an empty path logs to stderr.
func openLogFile(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stderr, func() error { return nil }, nil
	}
	p, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
