// Package cli implements the tabautoml command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabautoml/internal/config"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Loaded configuration
	cfg *config.Global
)

var rootCmd = &cobra.Command{
	Use:   "tabautoml",
	Short: "Tabular AutoML: compare, tune and finalize models on a table",
	Long: `tabautoml runs low-code machine learning experiments on CSV tables.
An experiment file names the dataset, the target column and the task, and
configures the setup, compare, tune, finalize, predict and plot stages.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig(cmd) },
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabautoml/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json (overrides config)")
}

// loadConfig resolves the global config and sets up logging.
// Precedence: flags > env > config file > defaults.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	f := cmd.Root().PersistentFlags()
	if f.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if f.Changed("log-format") {
		c.LogFormat = logFormat
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := log.Setup(c.LogLevel, c.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	cfg = c
	return nil
}
