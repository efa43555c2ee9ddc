package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/kvorm/bootstrap"
	"github.com/artpar/kvorm/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the kvorm configuration file.

Checks:
  - YAML syntax is valid
  - Store backend and collection schemas are well formed
  - Store backend is reachable (optional)

Examples:
  kvorm validate
  kvorm validate --config /etc/kvorm/config.yaml --check-store`,
	RunE: runValidate,
}

var validateCheckStore bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckStore, "check-store", false, "check if the store backend is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	// Show config summary
	fmt.Printf("  %s Backend: %s\n", checkMark, cfg.Store.Backend)
	fmt.Printf("  %s Namespace: %s\n", checkMark, cfg.Store.Namespace)
	if cfg.Server.DynamicCollections {
		fmt.Printf("  %s Collections: %d declared, dynamic mode on\n", checkMark, len(cfg.Collections))
	} else {
		fmt.Printf("  %s Collections: %d declared\n", checkMark, len(cfg.Collections))
	}
	for _, name := range sortedCollections(cfg) {
		fmt.Printf("      - %s (%d fields)\n", name, len(cfg.Collections[name]))
	}
	fmt.Printf("  %s Auth: %s\n", checkMark, enabledWord(cfg.Auth.Enabled))
	fmt.Printf("  %s Metrics: %s\n", checkMark, enabledWord(cfg.Metrics.Enabled))

	// Optional: check store
	if validateCheckStore {
		if err := checkStoreReachable(cfg); err != nil {
			fmt.Printf("  %s Store reachable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Store reachable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkStoreReachable(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := bootstrap.NewStore(ctx, cfg.Store, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(ctx)
}

func sortedCollections(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Collections))
	for name := range cfg.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func enabledWord(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
