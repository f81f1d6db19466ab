package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"referral-shop/internal/config"
	"referral-shop/migrations"
	"referral-shop/pkg/logger"
)

var upDryRun bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the referral-shop SQL schema to PostgreSQL",
	}

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				if upDryRun {
					return printPending(ctx, db)
				}

				applied, err := migrations.Apply(ctx, db, migrations.Files, logger.Log)
				if err != nil {
					logger.Log.Error("Migration failed", zap.Strings("applied", applied), zap.Error(err))
					return err
				}
				if len(applied) == 0 {
					logger.Log.Info("Database schema is up to date")
					return nil
				}
				logger.Log.Info("Migrations applied", zap.Strings("versions", applied))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&upDryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations that have not been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), printPending)
		},
	}
}

func printPending(ctx context.Context, db *sql.DB) error {
	pending, err := migrations.Pending(ctx, db, migrations.Files)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending migrations")
		return nil
	}
	for _, name := range pending {
		fmt.Println("pending:", name)
	}
	return nil
}

// withDB loads config, opens the PostgreSQL connection and runs fn
func withDB(parent context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(&logger.Config{Level: cfg.Log.Level}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("SQL migrations target postgres, DB_DRIVER is %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return fn(ctx, db)
}
