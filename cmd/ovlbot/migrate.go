package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nekodylan/OVL-MD/internal/config"
	"github.com/nekodylan/OVL-MD/internal/logging"
	"github.com/nekodylan/OVL-MD/internal/store"
)

func NewMigrateCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Example: `  ovlbot migrate up
  ovlbot migrate down --steps 1
  ovlbot migrate status --dsn postgres://bot@localhost/ovl`,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database URL (default: DATABASE_URL)")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), dsn, func(ctx context.Context, db *store.DB) error {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				return printVersion(ctx, cmd, db)
			})
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), dsn, func(ctx context.Context, db *store.DB) error {
				if err := db.MigrateDown(ctx, steps); err != nil {
					return err
				}
				return printVersion(ctx, cmd, db)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), dsn, func(ctx context.Context, db *store.DB) error {
				return printVersion(ctx, cmd, db)
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func withDB(ctx context.Context, dsn string, fn func(context.Context, *store.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dsn == "" {
		dsn = cfg.Storage.DatabaseURL
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := store.Connect(ctx, dsn, log)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func printVersion(ctx context.Context, cmd *cobra.Command, db *store.DB) error {
	v, dirty, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s, %s)\n", v, state, db.Dialect())
	return nil
}
