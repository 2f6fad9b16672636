package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
	lookup     func(string) (string, bool)
}

func newRootCmd(lookup func(string) (string, bool)) *cobra.Command {
	opts := &rootOptions{lookup: lookup}

	cmd := &cobra.Command{
		Use:   "unifi-mcp",
		Short: "MCP server for a local UniFi Network controller",
		Long: `unifi-mcp exposes a UniFi Network controller's private API as a single
MCP tool. It logs in with a local account, keeps the session alive and
recovers transparently when the controller expires it.

Configuration comes from an optional YAML file, a .env file and UNIFI_*
environment variables, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newPerformCmd(opts),
		newActionsCmd(),
		newVersionCmd(),
	)

	return cmd
}
