package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/tokkosync/internal/app"
	"github.com/stwalsh4118/tokkosync/internal/credential"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

func syncCommand(e *env) *cobra.Command {
	var (
		apiKey string
		userID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import the property feed of one provider credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(strings.TrimSpace(apiKey)) < credential.MinLength {
				return fmt.Errorf("--api-key must be at least %d characters", credential.MinLength)
			}

			req := services.SyncRequest{Credential: apiKey, UserID: userID}
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}

			return e.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Sync.SyncTokkoData(cmd.Context(), req)
				if result != nil {
					if printErr := e.printJSON(result); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of properties to import")
	cmd.Flags().StringVar(&userID, "user-id", "", "attach a new credential to this existing user")
	_ = cmd.MarkFlagRequired("api-key")

	return cmd
}
