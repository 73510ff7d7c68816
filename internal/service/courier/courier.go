package courier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Availability reasons.
const (
	ReasonInactive     = "inactive"
	ReasonNotAvailable = "not available"
	ReasonAtCapacity   = "at capacity"
	ReasonOutsideShift = "outside working hours"
	ReasonNoLocation   = "no location"
)

// Service coordinates courier business logic and orchestrates repository calls.
type Service struct {
	store            courierStore
	repo             dispatchtx.Runner
	index            locationIndex
	broadcaster      broadcaster
	loc              *time.Location
	logger           logx.Logger
	operationTimeout time.Duration
	now              func() time.Time
}

// Option tunes a Service.
type Option func(*Service)

// WithLocationIndex keeps idx in sync with courier positions and statuses.
func WithLocationIndex(idx locationIndex) Option {
	return func(s *Service) { s.index = idx }
}

// WithBroadcaster publishes location updates to active orders.
func WithBroadcaster(b broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithWorkingHoursLocation sets the zone working hours are evaluated in.
func WithWorkingHoursLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates and configures a courier Service.
func NewService(store courierStore, repo dispatchtx.Runner, timeout time.Duration, logger logx.Logger, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	s := &Service{
		store:            store,
		repo:             repo,
		loc:              time.UTC,
		logger:           logger,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// validateCreate validates a courier for creation and fills defaults.
func validateCreate(c *domain.Courier) error {
	if c == nil {
		return fmt.Errorf("%w: empty courier", apperr.ErrInvalid)
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	if !domain.ValidatePhone(c.Phone) {
		return fmt.Errorf("%w: phone must be + and 11 digits", apperr.ErrInvalid)
	}
	if c.Status == "" {
		c.Status = domain.CourierOffline
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: status %q", apperr.ErrInvalid, c.Status)
	}
	if c.Vehicle == "" {
		c.Vehicle = domain.VehicleFoot
	}
	if !c.Vehicle.Valid() {
		return fmt.Errorf("%w: vehicle %q", apperr.ErrInvalid, c.Vehicle)
	}
	if c.MaxActiveOrders <= 0 {
		return fmt.Errorf("%w: capacity must be positive", apperr.ErrInvalid)
	}
	if c.Location != nil && !c.Location.Valid() {
		return fmt.Errorf("%w: location", apperr.ErrInvalid)
	}
	return c.WorkingHours.Validate()
}

// Get retrieves a courier by its ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.store.GetCourier(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// List returns couriers with optional pagination
func (s *Service) List(ctx context.Context, limit, offset *int) ([]domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListCouriers(ctx, limit, offset)
}

// Create persists a new active courier and returns its generated ID.
func (s *Service) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	if err := validateCreate(c); err != nil {
		return 0, err
	}
	c.Active = true
	c.CurrentActiveOrders = 0
	if c.Location != nil {
		now := s.now()
		c.LocationUpdatedAt = &now
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id, err := s.store.CreateCourier(ctx, c)
	if err != nil {
		return 0, err
	}
	c.ID = id
	s.syncIndex(ctx, c)
	return id, nil
}

// ListEligible returns couriers the matcher may offer orders to right now, shift hours included.
func (s *Service) ListEligible(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Courier
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListEligibleCouriers(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	eligible := out[:0]
	for _, c := range out {
		if c.WorkingHours.Contains(now, s.loc) {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

// CheckAvailability explains whether the courier can receive offers right now.
func (s *Service) CheckAvailability(ctx context.Context, id int64) (domain.Availability, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	res := domain.Availability{CourierID: c.ID}
	if !c.Active {
		res.Reasons = append(res.Reasons, ReasonInactive)
	}
	if c.Status != domain.CourierAvailable {
		res.Reasons = append(res.Reasons, ReasonNotAvailable)
	}
	if !c.HasCapacity() {
		res.Reasons = append(res.Reasons, ReasonAtCapacity)
	}
	if !c.WorkingHours.Contains(s.now(), s.loc) {
		res.Reasons = append(res.Reasons, ReasonOutsideShift)
	}
	if c.Location == nil {
		res.Reasons = append(res.Reasons, ReasonNoLocation)
	}
	res.Eligible = len(res.Reasons) == 0
	return res, nil
}

// UpdateStatus switches the courier between offline, available and busy.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) (*domain.Courier, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: courier id must be positive", apperr.ErrInvalid)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", apperr.ErrInvalid, status)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated domain.Courier
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		c, err := tx.GetCourier(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.ErrNotFound
		}
		switch status {
		case domain.CourierAvailable:
			if !c.WorkingHours.Contains(s.now(), s.loc) {
				return apperr.ErrOutsideWorkingHours
			}
			if !c.HasCapacity() {
				// слотов нет, остаётся busy
				status = domain.CourierBusy
			}
		case domain.CourierOffline:
			if c.CurrentActiveOrders > 0 {
				return apperr.ErrHasActiveOrders
			}
		}
		c.Status = status
		c.UpdatedAt = s.now()
		if err := tx.SaveCourier(ctx, c); err != nil {
			return err
		}
		updated = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("courier status updated",
		logx.Int64("courier_id", id),
		logx.String("status", string(updated.Status)),
	)
	s.syncIndex(ctx, &updated)
	return &updated, nil
}

// UpdateLocation stores the courier position and pushes it to the orders the courier carries.
func (s *Service) UpdateLocation(ctx context.Context, id int64, lat, lon float64) (*domain.Courier, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: courier id must be positive", apperr.ErrInvalid)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: coordinates %.6f,%.6f", apperr.ErrInvalid, lat, lon)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated domain.Courier
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		c, err := tx.GetCourier(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.ErrNotFound
		}
		now := s.now()
		c.Location = &p
		c.LocationUpdatedAt = &now
		c.UpdatedAt = now
		if err := tx.SaveCourier(ctx, c); err != nil {
			return err
		}
		updated = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncIndex(ctx, &updated)
	s.broadcast(ctx, &updated)
	return &updated, nil
}

// syncIndex mirrors the committed courier into the location index; failures are only logged.
func (s *Service) syncIndex(ctx context.Context, c *domain.Courier) {
	if s.index == nil {
		return
	}
	var err error
	switch {
	case !c.Active || c.Status == domain.CourierOffline:
		err = s.index.Remove(ctx, c.ID)
	case c.Location != nil:
		err = s.index.Upsert(ctx, c.ID, *c.Location)
	}
	if err != nil {
		s.logger.Warn("location index sync failed", logx.Int64("courier_id", c.ID), logx.Err(err))
	}
}

func (s *Service) broadcast(ctx context.Context, c *domain.Courier) {
	if s.broadcaster == nil || c.CurrentActiveOrders == 0 {
		return
	}
	orders, err := s.broadcaster.GetActiveOrdersForCourier(ctx, c.ID)
	if err != nil {
		s.logger.Warn("active orders lookup failed", logx.Int64("courier_id", c.ID), logx.Err(err))
		return
	}
	at := s.now()
	if c.LocationUpdatedAt != nil {
		at = *c.LocationUpdatedAt
	}
	for _, o := range orders {
		s.broadcaster.BroadcastLocation(ctx, notify.LocationBroadcast{
			OrderID:   o.ID,
			CourierID: c.ID,
			Location:  *c.Location,
			At:        at,
		})
	}
}
