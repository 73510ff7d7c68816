package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"courier-dispatch/internal/logx"
)

// Runner starts the HTTP service from a built container.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a Runner bound to the default run loop.
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the HTTP server using the provided DI container
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		panic(err)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type appIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Pprof    *http.Server        `name:"pprof_server" optional:"true"`
	Pool     *pgxpool.Pool       `optional:"true"`
	Redis    *redis.Client       `optional:"true"`
	Producer sarama.SyncProducer `optional:"true"`
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

func appRun(in appIn) error {
	startServer(in.Server, in.Logger, "service-dispatch")
	if in.Pprof != nil {
		startServer(in.Pprof, in.Logger, "pprof")
	}
	waitForShutdown(in.Ctx, in.Logger)
	gracefulShutdown(in.Server, in.Logger, 15*time.Second)
	if in.Pprof != nil {
		gracefulShutdown(in.Pprof, in.Logger, time.Second)
	}
	closeResources(in.Logger, in.Pool, in.Redis, in.Producer)
	return in.Ctx.Err()
}

func startServer(server *http.Server, logger logx.Logger, name string) {
	go func() {
		logger.Info("listening", logx.String("server", name), logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", logx.String("server", name), logx.Err(err))
		}
	}()
}

func waitForShutdown(ctx context.Context, logger logx.Logger) {
	<-ctx.Done()
	logger.Info("shutting down service-dispatch...")
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}

func closeResources(logger logx.Logger, pool *pgxpool.Pool, rdb *redis.Client, producer sarama.SyncProducer) {
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close error", logx.Err(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close error", logx.Err(err))
		}
	}
	if pool != nil {
		pool.Close()
	}
}
