package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/tokkosync/internal/app"
	"github.com/stwalsh4118/tokkosync/internal/config"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/services"
)

type stubSync struct {
	services.SyncService
	got    services.SyncRequest
	result *services.SyncResult
	err    error
}

func (s *stubSync) SyncTokkoData(ctx context.Context, req services.SyncRequest) (*services.SyncResult, error) {
	s.got = req
	return s.result, s.err
}

type stubPhotos struct {
	got    services.MigrationScope
	result services.MigrationResult
}

func (s *stubPhotos) MigratePhotos(ctx context.Context, scope services.MigrationScope) (services.MigrationResult, error) {
	s.got = scope
	return s.result, nil
}

func testEnv(a *app.App) (*env, *bytes.Buffer, *int) {
	out := &bytes.Buffer{}
	opened := 0
	return &env{
		out:        out,
		loadConfig: func() (*config.Config, error) { return &config.Config{Server: config.ServerConfig{Env: "test"}}, nil },
		openApp: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app.App, error) {
			opened++
			return a, nil
		},
	}, out, &opened
}

func run(e *env, args ...string) error {
	cmd := rootCommand(e)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestSyncCommand(t *testing.T) {
	stub := &stubSync{result: &services.SyncResult{UserID: "u-1", Errors: []string{}, PropertiesSynced: 7}}
	e, out, _ := testEnv(&app.App{Sync: stub})

	require.NoError(t, run(e, "sync", "--api-key", "tokko-api-key-0123456789", "--limit", "7"))

	assert.Equal(t, "tokko-api-key-0123456789", stub.got.Credential)
	require.NotNil(t, stub.got.Limit)
	assert.Equal(t, 7, *stub.got.Limit)
	assert.Contains(t, out.String(), `"propertiesSynced": 7`)
}

func TestSyncCommand_DefaultLimitIsUnset(t *testing.T) {
	stub := &stubSync{result: &services.SyncResult{Errors: []string{}}}
	e, _, _ := testEnv(&app.App{Sync: stub})

	require.NoError(t, run(e, "sync", "--api-key", "tokko-api-key-0123456789"))
	assert.Nil(t, stub.got.Limit)
}

func TestSyncCommand_PrintsPartialResultOnFailure(t *testing.T) {
	stub := &stubSync{
		result: &services.SyncResult{Errors: []string{}, PropertiesSynced: 2},
		err:    errors.New("store unavailable"),
	}
	e, out, _ := testEnv(&app.App{Sync: stub})

	err := run(e, "sync", "--api-key", "tokko-api-key-0123456789")
	require.Error(t, err)
	assert.Contains(t, out.String(), `"propertiesSynced": 2`)
}

func TestSyncCommand_RejectsShortKey(t *testing.T) {
	e, _, opened := testEnv(&app.App{})

	err := run(e, "sync", "--api-key", "short")
	require.Error(t, err)
	assert.Zero(t, *opened, "no connections opened for invalid input")
}

func TestPhotosMigrateCommand(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		stub := &stubPhotos{result: services.MigrationResult{Migrated: 3, Failed: 1}}
		e, out, _ := testEnv(&app.App{Photos: stub})

		require.NoError(t, run(e, "photos", "migrate", "--all"))
		assert.Equal(t, services.MigrationScope{All: true}, stub.got)
		assert.Contains(t, out.String(), `"migrated": 3`)
	})

	t.Run("one user", func(t *testing.T) {
		stub := &stubPhotos{}
		e, _, _ := testEnv(&app.App{Photos: stub})

		require.NoError(t, run(e, "photos", "migrate", "--user-id", "3f6d2b1a-0c4e-4d8b-9a7f-2e1c0b9a8d7e"))
		assert.Equal(t, "3f6d2b1a-0c4e-4d8b-9a7f-2e1c0b9a8d7e", stub.got.UserID)
	})

	t.Run("requires a selector", func(t *testing.T) {
		e, _, opened := testEnv(&app.App{})
		require.Error(t, run(e, "photos", "migrate"))
		assert.Zero(t, *opened)
	})

	t.Run("selectors are exclusive", func(t *testing.T) {
		e, _, opened := testEnv(&app.App{})
		require.Error(t, run(e, "photos", "migrate", "--all", "--user-id", "x"))
		assert.Zero(t, *opened)
	})
}
