package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/config"
	testlog "courier-dispatch/internal/testutil"
)

// withStubNewPool подменяет newPool, поэтому тесты ниже не параллельные
func withStubNewPool(t *testing.T, stub func(context.Context, string) (*pgxpool.Pool, error)) {
	t.Helper()
	orig := newPool
	newPool = stub
	t.Cleanup(func() { newPool = orig })
}

func TestConnectDbWithRetry(t *testing.T) {
	boom := errors.New("db boom")
	okPool := &pgxpool.Pool{}

	tests := []struct {
		name      string
		failFirst int
		retries   int
		wantCalls int
		wantErr   error
		wantLogs  []string
	}{
		{name: "first attempt", failFirst: 0, retries: 3, wantCalls: 1, wantLogs: []string{"db connected"}},
		{name: "recovers after failures", failFirst: 2, retries: 3, wantCalls: 3, wantLogs: []string{"db connect failed", "db connected"}},
		{name: "exhausts retries", failFirst: 10, retries: 3, wantCalls: 3, wantErr: boom, wantLogs: []string{"db connect failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			withStubNewPool(t, func(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
				calls++
				require.Equal(t, "postgres://stub", dsn)
				_, hasDeadline := ctx.Deadline()
				require.True(t, hasDeadline, "each attempt is bounded")
				if calls <= tt.failFirst {
					return nil, boom
				}
				return okPool, nil
			})

			rec := testlog.New()
			pool, err := connectDbWithRetry(context.Background(), rec.Logger(), "postgres://stub", tt.retries, 0)

			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, pool)
			} else {
				require.NoError(t, err)
				require.Same(t, okPool, pool)
			}
			for _, msg := range tt.wantLogs {
				require.True(t, hasMsg(rec.Entries(), msg), "missing log %q", msg)
			}
		})
	}
}

func TestConnectDbWithRetry_ContextCanceledBetweenRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	withStubNewPool(t, func(context.Context, string) (*pgxpool.Pool, error) {
		calls++
		return nil, errors.New("db boom")
	})

	pool, err := connectDbWithRetry(ctx, testlog.New().Logger(), "postgres://stub", 3, 50*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, pool)
	require.Equal(t, 1, calls)
}

func TestConnectRedis_DisabledReturnsNil(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	rdb, err := connectRedis(context.Background(), rec.Logger(), config.Redis{Addr: "  "})
	require.NoError(t, err)
	require.Nil(t, rdb)
	require.True(t, hasMsg(rec.Entries(), "redis disabled, location index and pub/sub are off"))
}
