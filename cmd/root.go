// Package cmd defines and implements the CLI commands for the plotter-web executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/plotter-web/internal/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plotter-web",
		Short: "Web front door for a pen plotter.",
		Long: `plotter-web serves a browser editor for G-code, acknowledges submitted jobs
with a short preview, and can analyze programs for bounds and drawing statistics.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML, or JSON)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())

	return cmd
}

// loadConfig reads the --config file (if any) plus PLOTTER_* environment overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
