// Package cmd defines the CLI commands for the catalog-scraper executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shelfwise/catalog-scraper/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-scraper",
		Short: "Extracts catalog data from a rendered storefront",
		Long: `catalog-scraper drives a headless browser against a configured
storefront, applies layered extraction heuristics to recover categories and
products from arbitrary markup, and commits them idempotently to storage.`,
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.Init()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/catalog-scraper)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		os.Exit(1)
	}
}
