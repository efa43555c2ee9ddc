package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kvorm",
	Short: "Schema-validating document API over key-value stores",
	Long: `kvorm serves a validated document CRUD and query API on top of a
plain key-value store.

Collections are declared in YAML with per-field validation rules;
documents live in memory, Redis or SQLite behind a single store
interface. Queries filter, sort and paginate in the model layer, so
every backend supports the full API.

Quick start:
  kvorm serve              # Start the document API server
  kvorm validate           # Check the configuration
  kvorm migrate status     # Show data migration state`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env with KVORM_* variables, mainly for local development.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "kvorm.yaml", "config file path")
}
