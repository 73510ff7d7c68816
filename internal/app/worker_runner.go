package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the Kafka consumer and the redispatch loop
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(c *dispatch.Coordinator) orders.Dispatcher { return c },
		orders.NewProcessor,
		func(p *orders.Processor, cfg *config.Config) kafka.HandleFunc {
			// на событие: регистрация + dispatch, каждая операция со своим таймаутом
			return makeOrdersKafka(p, 2*cfg.Dispatch.OperationTimeout+time.Second)
		},
		func(logger logx.Logger, cfg *config.Config, h kafka.HandleFunc) (*kafka.Consumer, error) {
			return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrdersTopic, h)
		},
		newRedispatcher,
	)
}

type workerIn struct {
	dig.In

	Ctx          context.Context
	Pool         *pgxpool.Pool `optional:"true"`
	Logger       logx.Logger
	Consumer     *kafka.Consumer
	Redispatcher *Redispatcher       `optional:"true"`
	Redis        *redis.Client       `optional:"true"`
	Producer     sarama.SyncProducer `optional:"true"`
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		defer closeResources(in.Logger, nil, in.Redis, in.Producer)
		return workerRun(in.Ctx, in.Pool, in.Logger, in.Consumer, in.Redispatcher)
	})
}

func workerRun(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger logx.Logger,
	consumer *kafka.Consumer,
	redispatcher *Redispatcher,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: set KAFKA_BROKERS for the worker")
	}
	defer closeWorker(pool, logger, consumer)

	var wg sync.WaitGroup
	if redispatcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			redispatcher.Run(ctx)
		}()
	}

	logger.Info("service-dispatch-worker started")
	err := consumer.Run(ctx)
	wg.Wait()
	return err
}

func closeWorker(pool *pgxpool.Pool, logger logx.Logger, kafkaConsumer *kafka.Consumer) {
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			logger.Error("kafka close error", logx.Err(err))
		}
	}
	if pool != nil {
		pool.Close()
	}
}
