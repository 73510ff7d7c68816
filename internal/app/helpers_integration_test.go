//go:build integration

package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/repository"
	testlog "courier-dispatch/internal/testutil"
)

func TestConnectDbWithRetry_RealPostgres(t *testing.T) {
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dispatch"),
		postgres.WithUsername("dispatch"),
		postgres.WithPassword("dispatch"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rec := testlog.New()
	pool, err := connectDbWithRetry(ctx, rec.Logger(), dsn, 5, 200*time.Millisecond)
	require.NoError(t, err)
	defer pool.Close()
	require.True(t, hasMsg(rec.Entries(), "db connected"))

	// повторная миграция не должна падать
	require.NoError(t, repository.Migrate(ctx, pool))
	require.NoError(t, repository.Migrate(ctx, pool))
}

func TestConnectRedis_RealRedis(t *testing.T) {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rec := testlog.New()
	rdb, err := connectRedis(ctx, rec.Logger(), config.Redis{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer rdb.Close()

	require.NoError(t, rdb.Ping(ctx).Err())
	require.True(t, hasMsg(rec.Entries(), "redis connected"))
}
