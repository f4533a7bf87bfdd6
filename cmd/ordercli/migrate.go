package main

import (
	"context"
	"fmt"

	"agrimarket/internal/config"
	"agrimarket/internal/infra/db"
	"agrimarket/internal/infra/migrate"
	"agrimarket/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func migrateCommand() *cobra.Command {
	opt := migrate.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "create tables, constraints and triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, gdb *gorm.DB, log *zap.Logger) error {
				if err := migrate.Run(ctx, gdb, log, opt); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration done")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opt.CreateChecks, "checks", opt.CreateChecks, "create CHECK constraints")
	cmd.Flags().BoolVar(&opt.CreateIndexes, "indexes", opt.CreateIndexes, "create extra indexes")
	cmd.Flags().BoolVar(&opt.CreateUpdatedAtTrigger, "updated-at-trigger", opt.CreateUpdatedAtTrigger, "create updated_at trigger")
	cmd.Flags().BoolVar(&opt.CreateImmutableGuards, "immutable-guards", opt.CreateImmutableGuards, "forbid UPDATE/DELETE on order items and tracking events")
	return cmd
}

// 設定を読んでDBにつなぎ、fn を呼ぶ
func withDB(ctx context.Context, fn func(ctx context.Context, gdb *gorm.DB, log *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gdb, closeDB, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	return fn(ctx, gdb, log)
}
