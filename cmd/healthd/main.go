// Command healthd discovers health probes, serves the aggregate report over
// HTTP and runs one-off checks from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/probekit/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "healthd",
		Short:        "Health probe discovery and reporting daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults apply when empty)")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(tokenCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "healthd %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
