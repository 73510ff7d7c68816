// Package memory is an in-process dispatch store with optimistic transactions.
// Writes are staged per transaction and validated against committed versions on commit,
// so concurrent transactions behave like the Postgres store: the loser gets apperr.ErrConflict.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Store keeps committed dispatch state in memory.
type Store struct {
	mu sync.Mutex

	orders      map[uuid.UUID]domain.Order
	couriers    map[int64]domain.Courier
	assignments map[int64]domain.Assignment
	earnings    map[int64]domain.Earning
	history     []domain.StatusHistory

	nextCourierID    int64
	nextAssignmentID int64
	nextEarningID    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		orders:      make(map[uuid.UUID]domain.Order),
		couriers:    make(map[int64]domain.Courier),
		assignments: make(map[int64]domain.Assignment),
		earnings:    make(map[int64]domain.Earning),
	}
}

// WithTx runs fn against a staged view and commits it atomically.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := newTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.commit(tx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateCourier stores a new courier and returns its id.
func (s *Store) CreateCourier(_ context.Context, c *domain.Courier) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.couriers {
		if existing.Phone == c.Phone {
			return 0, apperr.ErrConflict
		}
	}
	s.nextCourierID++
	cp := cloneCourier(*c)
	cp.ID = s.nextCourierID
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.couriers[cp.ID] = cp
	return cp.ID, nil
}

// GetCourier returns a committed courier or nil.
func (s *Store) GetCourier(_ context.Context, id int64) (*domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return nil, nil
	}
	cp := cloneCourier(c)
	return &cp, nil
}

// ListCouriers returns couriers ordered by id. If limit/offset are nil, returns the full list.
func (s *Store) ListCouriers(_ context.Context, limit, offset *int) ([]domain.Courier, error) {
	s.mu.Lock()
	out := make([]domain.Courier, 0, len(s.couriers))
	for _, c := range s.couriers {
		out = append(out, cloneCourier(c))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset != nil {
		if *offset >= len(out) {
			return []domain.Courier{}, nil
		}
		out = out[*offset:]
	}
	if limit != nil && *limit < len(out) {
		out = out[:*limit]
	}
	return out, nil
}

// Order returns a committed order or nil.
func (s *Store) Order(id uuid.UUID) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return &o
}

// Assignments returns all committed assignments of an order ordered by id.
func (s *Store) Assignments(orderID uuid.UUID) []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Earnings returns all committed earnings.
func (s *Store) Earnings() []domain.Earning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Earning, 0, len(s.earnings))
	for _, e := range s.earnings {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// History returns the status history of an order in insertion order.
func (s *Store) History(orderID uuid.UUID) []domain.StatusHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusHistory
	for _, h := range s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out
}

func (s *Store) commit(tx *txRepo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(tx); err != nil {
		return err
	}

	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, c := range tx.couriers {
		c.UpdatedAt = time.Now().UTC()
		s.couriers[id] = c
	}
	for id, a := range tx.assignments {
		s.assignments[id] = a
	}
	for _, e := range tx.newEarnings {
		s.earnings[e.ID] = e
	}
	s.history = append(s.history, tx.history...)
	return nil
}

// validate must be called with s.mu held.
func (s *Store) validate(tx *txRepo) error {
	for id, v := range tx.expectOrders {
		if cur, ok := s.orders[id]; ok && cur.Version != v {
			return apperr.ErrConflict
		}
	}
	for id := range tx.insertedOrders {
		if _, ok := s.orders[id]; ok {
			return apperr.ErrConflict
		}
	}
	for id, v := range tx.expectCouriers {
		if s.couriers[id].Version != v {
			return apperr.ErrConflict
		}
	}
	for id, c := range tx.couriers {
		if c.CurrentActiveOrders < 0 || c.CurrentActiveOrders > c.MaxActiveOrders {
			return fmt.Errorf("courier %d capacity check violated: %w", id, apperr.ErrConflict)
		}
	}
	for id, v := range tx.expectAssignments {
		if s.assignments[id].Version != v {
			return apperr.ErrConflict
		}
	}

	// один активный assignment на заказ
	touched := make(map[uuid.UUID]struct{})
	for _, a := range tx.assignments {
		touched[a.OrderID] = struct{}{}
	}
	if len(touched) > 0 {
		active := make(map[uuid.UUID]int)
		for _, a := range mergeAssignments(s.assignments, tx.assignments) {
			if _, ok := touched[a.OrderID]; ok && a.Active {
				active[a.OrderID]++
			}
		}
		for orderID, n := range active {
			if n > 1 {
				return fmt.Errorf("order %s has %d active assignments: %w", orderID, n, apperr.ErrConflict)
			}
		}
	}

	for _, e := range tx.newEarnings {
		for _, existing := range s.earnings {
			if existing.CourierID == e.CourierID && existing.OrderID == e.OrderID {
				return apperr.ErrConflict
			}
		}
	}
	return nil
}

func cloneCourier(c domain.Courier) domain.Courier {
	if c.Location != nil {
		loc := *c.Location
		c.Location = &loc
	}
	if c.LocationUpdatedAt != nil {
		at := *c.LocationUpdatedAt
		c.LocationUpdatedAt = &at
	}
	return c
}

var _ dispatchtx.Runner = (*Store)(nil)
