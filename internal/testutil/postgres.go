//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/pkg/config"
)

// NewPostgresDB starts a throwaway Postgres container and returns a migrated
// connection to it. Requires a reachable Docker daemon.
func NewPostgresDB(t *testing.T) *database.DBManager {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ledger",
			"POSTGRES_PASSWORD": "ledger",
			"POSTGRES_DB":       "ledger",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dm, err := database.New(&config.DatabaseConfig{
		Driver:       database.DriverPGX,
		Host:         host,
		Port:         port.Port(),
		User:         "ledger",
		Password:     "ledger",
		DBName:       "ledger",
		SSLMode:      "disable",
		MaxOpenConns: 20,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(dm.ShutDown)

	require.NoError(t, dm.RunMigrations(ctx))
	return dm
}
