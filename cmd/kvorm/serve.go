package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apihttp "github.com/artpar/kvorm/adapters/http"
	"github.com/artpar/kvorm/bootstrap"
	"github.com/artpar/kvorm/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document API server",
	Long: `Start the kvorm server.

The server will:
  - Load configuration from kvorm.yaml (or --config)
  - Or load configuration from KVORM_* environment variables
  - Connect to the configured store backend
  - Serve document CRUD and queries on /api/{collection}

Environment variables (for Docker deployments):
  KVORM_STORE_BACKEND       - memory, redis or sqlite (required)
  KVORM_STORE_NAMESPACE     - key prefix (default: kvorm)
  KVORM_REDIS_ADDR          - Redis address for the redis backend
  KVORM_SQLITE_PATH         - Database path for the sqlite backend
  KVORM_SERVER_PORT         - Server port (default: 8080)
  KVORM_DYNAMIC_COLLECTIONS - Accept undeclared collections
  KVORM_LOG_LEVEL           - Log level: debug, info, warn, error

Examples:
  kvorm serve
  kvorm serve --config /etc/kvorm/config.yaml
  kvorm serve --hot-reload=false

  # Docker (env vars only):
  KVORM_STORE_BACKEND=memory kvorm serve`,
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

	// No configuration at all
	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with a store section\n", cfgFile)
		fmt.Println("Option 2: Set KVORM_STORE_BACKEND")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  KVORM_STORE_BACKEND=memory kvorm serve")
		return nil
	}

	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hasConfigFile && hotReload,
		Version:    apihttp.VersionInfo{Version: version, Commit: commit},
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
