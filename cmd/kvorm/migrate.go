package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/kvorm/bootstrap"
	"github.com/artpar/kvorm/config"
	"github.com/artpar/kvorm/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage data migrations",
	Long: `Inspect and run data migrations against the configured store.

Migration steps are registered in code (see registerMigrations); the
bookkeeping document lives in the store itself, so the same commands
work against every backend.

Examples:
  kvorm migrate status
  kvorm migrate up
  kvorm migrate down --steps 2`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations have been applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *migrate.Manager) error {
			statuses, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No migrations registered.")
				return nil
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt
				}
				fmt.Printf("  %-20s %-28s %s\n", s.ID, s.Name, state)
			}
			return nil
		})
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *migrate.Manager) error {
			names, err := mgr.Migrate(ctx)
			for _, name := range names {
				fmt.Printf("  applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("Nothing to apply.")
			}
			return nil
		})
	},
}

var migrateSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *migrate.Manager) error {
			names, err := mgr.Rollback(ctx, migrateSteps)
			for _, name := range names {
				fmt.Printf("  rolled back %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("Nothing to roll back.")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
}

// registerMigrations is where a deployment adds its data migrations. Steps
// run in the order they are added here.
func registerMigrations(mgr *migrate.Manager) {
	// mgr.Add(migrate.Migration{
	// 	ID:   "001_backfill_slugs",
	// 	Name: "backfill article slugs",
	// 	Up:   func(ctx context.Context, reg *model.Registry) error { ... },
	// 	Down: func(ctx context.Context, reg *model.Registry) error { ... },
	// })
	_ = mgr
}

// withManager builds the store, registry and migration manager from the
// active configuration, runs fn, and closes the store afterwards.
func withManager(fn func(context.Context, *migrate.Manager) error) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := zerolog.Nop()
	store, err := bootstrap.NewStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	registry, err := bootstrap.NewRegistry(cfg, store, nil)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	mgr, err := migrate.NewManager(migrate.ManagerConfig{
		Namespace: cfg.Store.Namespace,
		Store:     store,
		Registry:  registry,
	})
	if err != nil {
		return err
	}
	registerMigrations(mgr)

	return fn(ctx, mgr)
}
