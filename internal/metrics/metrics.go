package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewNotifyRetriesTotal returns a Prometheus counter for the number of retry attempts performed by notification sinks
func NewNotifyRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_retries_total",
		Help: "Total number of retry attempts performed by notification sinks",
	})
}

// Dispatch groups the counters of dispatch outcomes.
type Dispatch struct {
	Offers         prometheus.Counter
	Accepts        *prometheus.CounterVec
	Rejects        prometheus.Counter
	NoCandidate    prometheus.Counter
	Deliveries     prometheus.Counter
	NotifyFailures *prometheus.CounterVec
	Redispatches   prometheus.Counter
}

// NewDispatch creates unregistered dispatch counters.
func NewDispatch() *Dispatch {
	return &Dispatch{
		Offers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_total",
			Help: "Total number of offers created for couriers",
		}),
		Accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_accepts_total",
			Help: "Accept attempts by result",
		}, []string{"result"}),
		Rejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_rejects_total",
			Help: "Total number of rejected offers",
		}),
		NoCandidate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_no_candidate_total",
			Help: "Dispatch attempts that found no eligible courier",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_deliveries_total",
			Help: "Total number of completed deliveries",
		}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notify_failures_total",
			Help: "Notifications that failed after commit, by kind",
		}, []string{"kind"}),
		Redispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_redispatch_runs_total",
			Help: "Total number of redispatch sweeps",
		}),
	}
}

// Collectors lists every collector of d.
func (d *Dispatch) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		d.Offers, d.Accepts, d.Rejects, d.NoCandidate, d.Deliveries, d.NotifyFailures, d.Redispatches,
	}
}

// Register registers collectors, an already registered collector is not an error.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
