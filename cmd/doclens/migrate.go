package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doclens-ai/doclens/internal/storage"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Migrate creates the pgvector extension, tables, and indexes. The
statements are idempotent and safe to re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			db, err := storage.Open(ctx, cfg.Database.DSN,
				cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if err := storage.Migrate(ctx, db, cfg.Embedding.Dimension); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}

			if outputJSON {
				return printJSON(map[string]interface{}{
					"migrated":            true,
					"embedding_dimension": cfg.Embedding.Dimension,
				})
			}
			color.New(color.FgGreen).Printf("✓ Schema applied (embedding dimension %d)\n", cfg.Embedding.Dimension)
			return nil
		},
	}
}
