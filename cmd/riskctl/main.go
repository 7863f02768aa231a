// Command riskctl is the operator CLI for the risk service: database
// migrations, one-off assessments, configuration checks and MCP client setup.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "riskctl",
		Short:         "Pregnancy risk service administration",
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(setupCmd())
	return rootCmd
}
