package main

import (
	"github.com/spf13/cobra"

	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/storage"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create catalog tables and indexes, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := logger.WithModule("migrate")
			// opening a backend brings its schema up to date
			store, err := storage.Open(cmd.Context(), cfg.Storage(), log)
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())
			if err := store.Ping(cmd.Context()); err != nil {
				return err
			}
			log.WithField("backend", cfg.DatabaseType).Info("catalog schema is up to date")
			return nil
		},
	}
}
