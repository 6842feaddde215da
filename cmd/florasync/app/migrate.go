package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/florasync/florasync/database"
	"github.com/florasync/florasync/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context(), database.MigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context(), database.MigrateDown)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(ctx context.Context, migrate func(context.Context, *pgx.Conn) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	configPath := viper.GetString("config")
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.ConnString()
	if err != nil {
		return err
	}

	db, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close(ctx) }()

	if err := migrate(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("migration complete")
	return nil
}
