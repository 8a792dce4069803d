// Package cmd defines the CLI commands for the inventory-crawler executable.
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/quirkauto/inventory-crawler/internal/pipeline"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory-crawler",
		Short: "Nightly crawler that keeps the dealership inventory snapshot fresh",
		Long: `inventory-crawler walks a dealership's new and used search pages,
parses every vehicle detail page, and refreshes the normalized inventory
snapshot consumed by downstream messaging.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute runs the CLI. A guardrail trip exits 2 so schedulers can tell
// "site looked broken, snapshot kept" apart from ordinary failures.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, pipeline.ErrTooFewVehicles) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
