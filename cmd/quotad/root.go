package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quotad",
	Short: "Daily usage-quota accounting for metered assistant questions",
	Long: `quotad tracks per-user, per-plan daily limits for the AI assistant.

It answers "may this user consume one question?", performs accounted
consumptions against a durable store, resets counters at day boundaries
in a single canonical time zone, and summarizes the consumption log for
reporting.

Quick start:
  quotad serve                  # Start the accounting service
  quotad validate               # Check the configuration
  quotad usage record --user=u1 # Inspect a user's quota record`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "quotad.yaml", "path to configuration file")
}
