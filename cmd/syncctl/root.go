package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/tokkosync/internal/app"
	"github.com/stwalsh4118/tokkosync/internal/config"
	"github.com/stwalsh4118/tokkosync/internal/logger"
)

const closeTimeout = 10 * time.Second

// env holds what commands need from the outside world.
type env struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	openApp    func(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app.App, error)
}

func defaultEnv() *env {
	return &env{
		out:        os.Stdout,
		loadConfig: config.Load,
		openApp:    app.New,
	}
}

func rootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the tokkosync property feed service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		syncCommand(e),
		photosCommand(e),
		dbCommand(e),
	)

	return rootCmd
}

// withApp loads configuration, opens the service graph and runs fn with it.
func (e *env) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Server.Env).WithComponent("syncctl")
	a, err := e.openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(closeTimeout)

	return fn(a)
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
