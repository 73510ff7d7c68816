// Package matching picks the courier an order is offered to.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Config tunes candidate selection. MaxRadiusKm <= 0 means unlimited.
type Config struct {
	MaxRadiusKm float64
	Location    *time.Location
}

// Candidate is an eligible courier with its distance to the pickup point.
type Candidate struct {
	Courier    domain.Courier
	DistanceKm float64
}

// Engine selects the nearest eligible courier and creates the offer.
type Engine struct {
	pricer Pricer
	index  LocationIndex
	cfg    Config
	logger logx.Logger
	now    func() time.Time
}

// New creates an Engine. index may be nil.
func New(pricer Pricer, index LocationIndex, cfg Config, logger logx.Logger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Engine{
		pricer: pricer,
		index:  index,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Eligible reports whether c may receive an offer at the given instant.
func (e *Engine) Eligible(c domain.Courier, at time.Time) bool {
	return c.Active &&
		c.Status == domain.CourierAvailable &&
		c.HasCapacity() &&
		c.Location != nil &&
		c.WorkingHours.Contains(at, e.cfg.Location)
}

// Rank filters couriers down to eligible ones and orders them by distance to the pickup,
// then by ascending id.
func (e *Engine) Rank(o domain.Order, couriers []domain.Courier, excluded []int64, at time.Time) []Candidate {
	skip := make(map[int64]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	out := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		if !e.Eligible(c, at) {
			continue
		}
		d := c.Location.DistanceTo(o.Pickup)
		if e.cfg.MaxRadiusKm > 0 && d > e.cfg.MaxRadiusKm {
			continue
		}
		out = append(out, Candidate{Courier: c, DistanceKm: d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Courier.ID < out[j].Courier.ID
	})
	return out
}

// FindBestCourier offers the order to the best candidate inside tx.
// It returns nil when nobody is eligible. Couriers that rejected the order are always skipped.
func (e *Engine) FindBestCourier(
	ctx context.Context, tx dispatchtx.Repository, o domain.Order, excluded []int64,
) (*domain.Assignment, error) {
	rejected, err := tx.RejectedCourierIDs(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("rejected couriers: %w", err)
	}
	excluded = append(append([]int64(nil), excluded...), rejected...)

	filter := domain.CandidateFilter{ExcludeIDs: excluded}
	filter.OnlyIDs = e.nearby(ctx, o)

	couriers, err := tx.ListEligibleCouriers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list eligible couriers: %w", err)
	}

	ranked := e.Rank(o, couriers, excluded, e.now())
	if len(ranked) == 0 {
		return nil, nil
	}
	best := ranked[0]

	a, err := e.Offer(ctx, tx, o, best.Courier)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("courier selected",
		logx.String("order_id", o.ID.String()),
		logx.Int64("courier_id", best.Courier.ID),
		logx.Float64("distance_km", best.DistanceKm),
		logx.Int("candidates", len(ranked)),
	)
	return a, nil
}

// Offer creates an active offered assignment of o to c with a freshly priced fee.
func (e *Engine) Offer(ctx context.Context, tx dispatchtx.Repository, o domain.Order, c domain.Courier) (*domain.Assignment, error) {
	now := e.now()
	a := &domain.Assignment{
		OrderID:     o.ID,
		CourierID:   c.ID,
		Status:      domain.AssignmentOffered,
		DeliveryFee: e.pricer.Fee(o, c.Vehicle, now),
		Tip:         o.Tip,
		Active:      true,
		OfferedAt:   now,
	}
	if err := tx.InsertAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	return a, nil
}

// nearby prefilters through the location index. nil means no restriction.
func (e *Engine) nearby(ctx context.Context, o domain.Order) []int64 {
	if e.index == nil || e.cfg.MaxRadiusKm <= 0 {
		return nil
	}
	ids, err := e.index.Nearby(ctx, o.Pickup, e.cfg.MaxRadiusKm)
	if err != nil {
		e.logger.Warn("location index unavailable, using store",
			logx.String("order_id", o.ID.String()),
			logx.Err(err),
		)
		return nil
	}
	// пустой индекс после рестарта не должен блокировать диспетчеризацию
	if len(ids) == 0 {
		return nil
	}
	return ids
}
