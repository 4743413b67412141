// Package cli implements the kestrel command-line interface using Cobra.
// It provides the proxy, api, and ca init entry points.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kstvn/kestrel/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Kestrel - intercepting HTTP/HTTPS proxy and SQL-injection scanner",
	Long: `Kestrel is an intercepting HTTP/HTTPS proxy with a companion
inspection API. Traffic from clients configured to use it is captured,
persisted, and made available for replay and automated SQL-injection
probing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := log.Init(log.Options{Verbose: verbose}); err != nil {
			cmd.PrintErrf("Warning: failed to initialize logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
