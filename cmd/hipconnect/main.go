// Command hipconnect runs the HipChat Connect add-on server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pysugar/hipchat-connect/internal/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "hipconnect",
	Short:         "HipChat Connect add-on server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "hipconnect", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.AddCommand(serveCmd, workerCmd, seedCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
