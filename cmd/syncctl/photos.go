package main

import (
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/tokkosync/internal/app"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

func photosCommand(e *env) *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Photo storage commands",
	}
	photosCmd.AddCommand(migrateCommand(e))
	return photosCmd
}

func migrateCommand(e *env) *cobra.Command {
	var (
		userID string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy provider-hosted photos into owned storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := services.MigrationScope{UserID: userID, All: all}
			return e.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Photos.MigratePhotos(cmd.Context(), scope)
				if printErr := e.printJSON(result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "migrate the photos of one user")
	cmd.Flags().BoolVar(&all, "all", false, "migrate the photos of every user")
	cmd.MarkFlagsOneRequired("user-id", "all")
	cmd.MarkFlagsMutuallyExclusive("user-id", "all")

	return cmd
}
