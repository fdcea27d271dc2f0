package main

import (
	"fmt"
	"os"

	"github.com/inkwellhq/quotad/bootstrap"
	"github.com/inkwellhq/quotad/config"
	"github.com/spf13/cobra"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quota accounting service",
	Long: `Start the quotad HTTP service.

The server will:
  - Load configuration from quotad.yaml (or --config)
  - Or load configuration from QUOTAD_* environment variables
  - Open the usage store and run pending migrations
  - Serve consumption, usage and analytics endpoints

Environment variables (for Docker deployments):
  QUOTAD_DATABASE_DRIVER   - sqlite or memory (default: sqlite)
  QUOTAD_DATABASE_PATH     - Database path (default: quotad.db)
  QUOTAD_SERVER_PORT       - Server port (default: 8080)
  QUOTAD_QUOTA_TIMEZONE    - Canonical zone for day boundaries (default: UTC)
  QUOTAD_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  quotad serve
  quotad serve --config /etc/quotad/config.yaml
  quotad serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set QUOTAD_* environment variables")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  QUOTAD_DATABASE_PATH=/var/lib/quotad/quotad.db quotad serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		var cfg *config.Config
		if hasConfigFile {
			cfg, err = config.Load(cfgFile)
		} else {
			fmt.Println("Running with environment variables (no config file)")
			cfg, err = config.FromEnv()
		}
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
