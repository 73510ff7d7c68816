package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	obs "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/repository/redisgeo"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/earnings"
	"courier-dispatch/internal/service/matching"
	"courier-dispatch/internal/service/pricing"
)

type (
	dbConnectFunc    func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)
	migrateFunc      func(context.Context, *pgxpool.Pool) error
	redisConnectFunc func(context.Context, logx.Logger, config.Redis) (*redis.Client, error)
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect    dbConnectFunc
	migrate      migrateFunc
	redisConnect redisConnectFunc
	loadConfig   func() (*config.Config, error)
	logFatalf    func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:    connectDbWithRetry,
		migrate:      repository.Migrate,
		redisConnect: connectRedis,
		loadConfig:   config.Load,
		logFatalf:    log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithMigrate sets the schema migration function
func (b *ContainerBuilder) WithMigrate(fn migrateFunc) *ContainerBuilder {
	if fn != nil {
		b.migrate = fn
	}
	return b
}

// WithRedisConnect sets the redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
	}
	return b
}

// WithConfig replaces config.Load
func (b *ContainerBuilder) WithConfig(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the HTTP service container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the worker container
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) base(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect, b.migrate); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerRedis(container, b.redisConnect); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := registerDomainServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container, err := b.base(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container, err := b.base(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns the HTTP service container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds and returns the worker container
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, load func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		load,
		NewLogger,
		provideMetrics,
		provideDispatchMetrics,
		provideHTTPMetrics,
	)
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc, migrate migrateFunc) error {
	providerDB := func(ctx context.Context, logger logx.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, pool); err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pool, nil
	}
	return provideAll(container, providerDB)
}

func registerRedis(container *dig.Container, connect redisConnectFunc) error {
	return provideAll(container,
		func(ctx context.Context, logger logx.Logger, cfg *config.Config) (*redis.Client, error) {
			return connect(ctx, logger, cfg.Redis)
		},
		func(rdb *redis.Client, cfg *config.Config) *redisgeo.Index {
			if rdb == nil {
				return nil
			}
			return redisgeo.New(rdb, cfg.Redis.GeoKey)
		},
	)
}

func pricingConfig(cfg *config.Config, loc *time.Location) pricing.Config {
	p := cfg.Pricing
	return pricing.Config{
		BaseFee:          decimal.NewFromFloat(p.BaseFee),
		PerKm:            decimal.NewFromFloat(p.PerKm),
		EveningBonusRate: decimal.NewFromFloat(p.EveningBonusRate),
		EveningFromHour:  p.EveningFromHour,
		EveningToHour:    p.EveningToHour,
		MotorcycleBonus:  decimal.NewFromFloat(p.MotorcycleBonus),
		CarBonus:         decimal.NewFromFloat(p.CarBonus),
		Location:         loc,
	}
}

// provideKafkaProducer returns nil when notifications go to redis and the log only.
func provideKafkaProducer(cfg *config.Config) (sarama.SyncProducer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.NotificationsTopic == "" {
		return nil, nil
	}
	return notify.NewKafkaProducer(cfg.Kafka.Brokers)
}

type sinkIn struct {
	dig.In

	Config   *config.Config
	Logger   logx.Logger
	Redis    *redis.Client
	Producer sarama.SyncProducer
	Retries  prometheus.Counter `name:"notify_retries_total"`
}

// provideSink собирает fan-out из доступных каналов, каждый со своими ретраями
func provideSink(in sinkIn) notify.Sink {
	retry := notify.RetryConfig{
		MaxAttempts: in.Config.Notify.MaxAttempts,
		BaseDelay:   in.Config.Notify.BaseDelay,
		MaxDelay:    in.Config.Notify.MaxDelay,
	}
	var sinks []notify.Sink
	if in.Redis != nil {
		sinks = append(sinks, notify.NewRetrying(notify.NewRedisPublisher(in.Redis), in.Logger, in.Retries, retry))
	}
	if in.Producer != nil {
		pub := notify.NewKafkaPublisher(in.Producer, in.Config.Kafka.NotificationsTopic)
		sinks = append(sinks, notify.NewRetrying(pub, in.Logger, in.Retries, retry))
	}
	if len(sinks) == 0 {
		in.Logger.Info("no notification channel configured")
		return notify.Nop()
	}
	return notify.NewFanout(sinks...)
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		repository.NewCourierRepo,
		repository.NewDispatchRepo,
		func(cfg *config.Config) (*time.Location, error) {
			return cfg.Dispatch.Location()
		},
		func(cfg *config.Config, loc *time.Location) *pricing.Calculator {
			return pricing.New(pricingConfig(cfg, loc))
		},
		earnings.New,
		func(
			calc *pricing.Calculator, idx *redisgeo.Index, cfg *config.Config, loc *time.Location, logger logx.Logger,
		) *matching.Engine {
			var index matching.LocationIndex
			if idx != nil {
				index = idx
			}
			return matching.New(calc, index, matching.Config{MaxRadiusKm: cfg.Dispatch.MaxRadiusKm, Location: loc}, logger)
		},
		provideKafkaProducer,
		provideSink,
		func(
			repo *repository.DispatchRepo,
			eng *matching.Engine,
			earn *earnings.Calculator,
			sink notify.Sink,
			mx *metrics.Dispatch,
			cfg *config.Config,
			logger logx.Logger,
		) *dispatch.Coordinator {
			return dispatch.New(repo, eng, earn, sink, mx, dispatch.Config{
				OperationTimeout: cfg.Dispatch.OperationTimeout,
				NotifyTimeout:    cfg.Dispatch.NotifyTimeout,
			}, logger)
		},
		func(
			repo *repository.CourierRepo,
			tx *repository.DispatchRepo,
			coord *dispatch.Coordinator,
			idx *redisgeo.Index,
			cfg *config.Config,
			loc *time.Location,
			logger logx.Logger,
		) *courier.Service {
			opts := []courier.Option{
				courier.WithBroadcaster(coord),
				courier.WithWorkingHoursLocation(loc),
			}
			if idx != nil {
				opts = append(opts, courier.WithLocationIndex(idx))
			}
			return courier.NewService(repo, tx, cfg.Dispatch.OperationTimeout, logger, opts...)
		},
	)
}

type routerIn struct {
	dig.In

	Config   *config.Config
	Logger   logx.Logger
	Metrics  *obs.HTTPMetrics
	Limit    *ratelimit.Middleware
	Base     *handlers.Handlers
	Couriers *handlers.CourierHandler
	Orders   *handlers.OrderHandler
}

func provideRouter(in routerIn) http.Handler {
	// запас поверх таймаута операции на сериализацию и уведомления
	timeout := in.Config.Dispatch.OperationTimeout + 2*time.Second
	return router.New(in.Base, in.Couriers, in.Orders, router.Options{
		Logger:       in.Logger,
		Metrics:      in.Metrics,
		CourierLimit: in.Limit,
		Timeout:      timeout,
	})
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	err := provideAll(container,
		handlers.New,
		handlers.NewCourierUsecase,
		handlers.NewDispatchUsecase,
		handlers.NewCourierHandler,
		handlers.NewOrderHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		provideRouter,
		serverProvider,
	)
	if err != nil {
		return err
	}
	pprofProvider := func(cfg *config.Config, logger logx.Logger) *http.Server {
		if !cfg.Pprof.Enabled {
			return nil
		}
		return pprofserver.NewServer(pprofserver.Config{
			Addr: cfg.Pprof.Addr,
			User: cfg.Pprof.User,
			Pass: cfg.Pprof.Pass,
		}, logger)
	}
	if err := container.Provide(pprofProvider, dig.Name("pprof_server")); err != nil {
		return fmt.Errorf("provide pprof server: %w", err)
	}
	return nil
}
