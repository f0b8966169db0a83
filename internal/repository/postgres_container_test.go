package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/tokkosync/internal/config"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	sharedDB      *database.Database
	containerErr  error
)

// setupTestDB starts one PostgreSQL container for the package, migrates
// the schema and truncates every table before each test.
func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_DB":       "tokkosync",
					"POSTGRES_USER":     "postgres",
					"POSTGRES_PASSWORD": "postgres",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(90 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			containerErr = err
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			containerErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			containerErr = err
			return
		}

		db, err := database.NewPostgresPool(ctx, config.DatabaseConfig{
			Host:     host,
			Port:     port.Port(),
			Name:     "tokkosync",
			User:     "postgres",
			Password: "postgres",
			SSLMode:  "disable",
			PoolMin:  1,
			PoolMax:  5,
		})
		if err != nil {
			containerErr = err
			return
		}

		if err := db.Migrate(ctx); err != nil {
			containerErr = err
			return
		}
		sharedDB = db
	})

	if containerErr != nil {
		t.Skipf("PostgreSQL container unavailable: %v", containerErr)
	}

	_, err := sharedDB.Pool.Exec(context.Background(), `
		TRUNCATE tokko_property_tag_link, tokko_property_tag, tokko_property_video,
			tokko_property_photo, properties, tokko_branch, tokko_location, users CASCADE`)
	require.NoError(t, err)

	return sharedDB
}
