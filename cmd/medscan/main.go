// Package main provides the medscan command line client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-medreport-scanner/internal/config"
	"go-medreport-scanner/internal/container"
	"go-medreport-scanner/internal/logger"
	"go-medreport-scanner/internal/observer"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	cfg      *config.Config
	app      *container.Container
	progress *observer.ProgressObserver
	ui       *UI
)

var rootCmd = &cobra.Command{
	Use:   "medscan",
	Short: "Scan a medical report and get a plain-language summary",
	Long: `medscan captures a photo of a medical report, enhances it, sends it to the
summary backend and prints the English and Hindi summaries.

Summaries are kept in a local history and can be shared over WhatsApp,
email, PDF, the clipboard or plain text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("MEDSCAN_CONFIG", cfgFile); err != nil {
				return fmt.Errorf("set config path: %w", err)
			}
		}

		var err error
		cfg, err = config.LoadFromEnv()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// stdout is reserved for summaries
		logger.SetOutput(os.Stderr)
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		} else if os.Getenv("LOG_LEVEL") == "" {
			level = "warn"
		}
		logger.Configure(level, "text")

		ui = NewUI(outputJSON, noColor)
		progress = observer.NewProgressObserver(os.Stderr)

		app, err = container.NewContainer(cmd.Context(), cfg, container.WithObserver(progress))
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil {
			return app.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newShareCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
