package main

import (
	"github.com/spf13/cobra"
	"github.com/vedran77/reviewhub/internal/database"
	"github.com/vedran77/reviewhub/pkg/logger"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			pool, err := database.Connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info().Str("db", cfg.DBName).Msg("schema applied")
			return nil
		},
	}
}
