package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flowctl",
		Short: "Build, send and verify Open API test flows",
		Long: `flowctl builds Open API requests from layered test fixtures, sends them,
correlates asynchronous callbacks through the listener and validates the
responses against the fixture expectations.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults to $FLOW_CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newSessionCmd(opts))
	cmd.AddCommand(newStoreCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))

	return cmd
}
