package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	obs "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal prometheus.Counter `name:"rate_limit_exceeded_total"`
	NotifyRetriesTotal     prometheus.Counter `name:"notify_retries_total"`
}

// provideMetrics registers the standalone counters; an already registered counter is reused.
func provideMetrics() (metricsOut, error) {
	rl, err := registerCounter(prometheus.DefaultRegisterer, metrics.NewRateLimitExceededTotal())
	if err != nil {
		return metricsOut{}, fmt.Errorf("register rate_limit_exceeded_total: %w", err)
	}
	nr, err := registerCounter(prometheus.DefaultRegisterer, metrics.NewNotifyRetriesTotal())
	if err != nil {
		return metricsOut{}, fmt.Errorf("register notify_retries_total: %w", err)
	}
	return metricsOut{RateLimitExceededTotal: rl, NotifyRetriesTotal: nr}, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func provideDispatchMetrics() (*metrics.Dispatch, error) {
	m := metrics.NewDispatch()
	if err := metrics.Register(prometheus.DefaultRegisterer, m.Collectors()...); err != nil {
		return nil, fmt.Errorf("register dispatch metrics: %w", err)
	}
	return m, nil
}

func provideHTTPMetrics() (*obs.HTTPMetrics, error) {
	m := obs.NewHTTPMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer, m.Collectors()...); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	return m, nil
}
