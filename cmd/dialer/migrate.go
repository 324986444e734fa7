package main

import (
	"context"
	"database/sql"
	"fmt"

	"dialer-platform/internal/database"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), load, func(ctx context.Context, db *sql.DB) error {
				return database.MigrateUp(ctx, db)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), load, func(ctx context.Context, db *sql.DB) error {
				states, err := database.Status(ctx, db)
				if err != nil {
					return err
				}
				for _, s := range states {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, state, s.Path)
				}
				return nil
			})
		},
	})
	return cmd
}

func withDB(parent context.Context, load configLoader, fn func(context.Context, *sql.DB) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env)
	ctx := logger.With(parent, log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}
