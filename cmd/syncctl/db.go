package main

import (
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/stwalsh4118/tokkosync/internal/logger"
)

func dbCommand(e *env) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database commands",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}

			db, err := database.NewPostgresPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			logger.New(cfg.Server.Env).Info("Schema migrated", map[string]interface{}{
				"database": cfg.Database.Name,
			})
			return nil
		},
	})

	return dbCmd
}
