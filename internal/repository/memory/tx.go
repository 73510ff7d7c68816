package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// txRepo stages writes until commit. Reads see staged rows first, then committed ones.
type txRepo struct {
	s *Store

	orders      map[uuid.UUID]domain.Order
	couriers    map[int64]domain.Courier
	assignments map[int64]domain.Assignment

	expectOrders      map[uuid.UUID]int64
	expectCouriers    map[int64]int64
	expectAssignments map[int64]int64
	insertedOrders    map[uuid.UUID]struct{}

	newEarnings []domain.Earning
	history     []domain.StatusHistory
}

func newTx(s *Store) *txRepo {
	return &txRepo{
		s:                 s,
		orders:            make(map[uuid.UUID]domain.Order),
		couriers:          make(map[int64]domain.Courier),
		assignments:       make(map[int64]domain.Assignment),
		expectOrders:      make(map[uuid.UUID]int64),
		expectCouriers:    make(map[int64]int64),
		expectAssignments: make(map[int64]int64),
		insertedOrders:    make(map[uuid.UUID]struct{}),
	}
}

func (t *txRepo) order(id uuid.UUID) (domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.orders[id]
	return o, ok
}

func (t *txRepo) courier(id int64) (domain.Courier, bool) {
	if c, ok := t.couriers[id]; ok {
		return cloneCourier(c), true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.couriers[id]
	return cloneCourier(c), ok
}

// assignmentsView merges committed and staged assignments.
func (t *txRepo) assignmentsView() []domain.Assignment {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return mergeAssignments(t.s.assignments, t.assignments)
}

// mergeAssignments overlays staged rows on committed ones; staged rows may be new.
func mergeAssignments(committed, staged map[int64]domain.Assignment) []domain.Assignment {
	out := make([]domain.Assignment, 0, len(committed)+len(staged))
	for id, a := range committed {
		if s, ok := staged[id]; ok {
			a = s
		}
		out = append(out, a)
	}
	for id, a := range staged {
		if _, ok := committed[id]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func (t *txRepo) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := t.order(id)
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (t *txRepo) InsertOrder(_ context.Context, o *domain.Order) error {
	if _, ok := t.order(o.ID); ok {
		return apperr.ErrConflict
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Version = 0
	t.orders[o.ID] = *o
	t.insertedOrders[o.ID] = struct{}{}
	return nil
}

func (t *txRepo) SaveOrder(_ context.Context, o *domain.Order) error {
	cur, ok := t.order(o.ID)
	if !ok {
		return apperr.ErrNotFound
	}
	if cur.Version != o.Version {
		return apperr.ErrConflict
	}
	if _, staged := t.expectOrders[o.ID]; !staged {
		if _, inserted := t.insertedOrders[o.ID]; !inserted {
			t.expectOrders[o.ID] = o.Version
		}
	}
	o.Version++
	t.orders[o.ID] = *o
	return nil
}

func (t *txRepo) ListActiveOrdersForCourier(_ context.Context, courierID int64) ([]domain.Order, error) {
	var out []domain.Order
	for _, a := range t.assignmentsView() {
		if a.CourierID != courierID || !a.Active {
			continue
		}
		o, ok := t.order(a.OrderID)
		if !ok || o.Status.Terminal() {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *txRepo) ListUndispatchedOrders(_ context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	active := make(map[uuid.UUID]struct{})
	for _, a := range t.assignmentsView() {
		if a.Active {
			active[a.OrderID] = struct{}{}
		}
	}

	t.s.mu.Lock()
	candidates := make([]domain.Order, 0)
	for id, o := range t.s.orders {
		if staged, ok := t.orders[id]; ok {
			o = staged
		}
		if !o.Status.Dispatchable() || !o.CreatedAt.Before(createdBefore) {
			continue
		}
		if _, ok := active[id]; ok {
			continue
		}
		candidates = append(candidates, o)
	}
	t.s.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, o := range candidates {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (t *txRepo) AppendStatusHistory(_ context.Context, h domain.StatusHistory) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	t.history = append(t.history, h)
	return nil
}

func (t *txRepo) GetCourier(_ context.Context, id int64) (*domain.Courier, error) {
	c, ok := t.courier(id)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *txRepo) SaveCourier(_ context.Context, c *domain.Courier) error {
	cur, ok := t.courier(c.ID)
	if !ok {
		return apperr.ErrNotFound
	}
	if cur.Version != c.Version {
		return apperr.ErrConflict
	}
	if _, staged := t.expectCouriers[c.ID]; !staged {
		t.expectCouriers[c.ID] = c.Version
	}
	c.Version++
	t.couriers[c.ID] = cloneCourier(*c)
	return nil
}

func (t *txRepo) ListEligibleCouriers(_ context.Context, f domain.CandidateFilter) ([]domain.Courier, error) {
	exclude := make(map[int64]struct{}, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		exclude[id] = struct{}{}
	}
	var only map[int64]struct{}
	if f.OnlyIDs != nil {
		only = make(map[int64]struct{}, len(f.OnlyIDs))
		for _, id := range f.OnlyIDs {
			only[id] = struct{}{}
		}
	}

	t.s.mu.Lock()
	ids := make([]int64, 0, len(t.s.couriers))
	for id := range t.s.couriers {
		ids = append(ids, id)
	}
	t.s.mu.Unlock()

	out := make([]domain.Courier, 0)
	for _, id := range ids {
		if _, skip := exclude[id]; skip {
			continue
		}
		if only != nil {
			if _, ok := only[id]; !ok {
				continue
			}
		}
		c, _ := t.courier(id)
		if !c.Active || c.Status != domain.CourierAvailable || !c.HasCapacity() || c.Location == nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txRepo) GetActiveAssignment(_ context.Context, orderID uuid.UUID) (*domain.Assignment, error) {
	for _, a := range t.assignmentsView() {
		if a.OrderID == orderID && a.Active {
			return &a, nil
		}
	}
	return nil, nil
}

func (t *txRepo) InsertAssignment(_ context.Context, a *domain.Assignment) error {
	if a.Active {
		for _, existing := range t.assignmentsView() {
			if existing.OrderID == a.OrderID && existing.Active {
				return apperr.ErrConflict
			}
		}
	}
	t.s.mu.Lock()
	t.s.nextAssignmentID++
	a.ID = t.s.nextAssignmentID
	t.s.mu.Unlock()
	a.Version = 0
	t.assignments[a.ID] = *a
	return nil
}

func (t *txRepo) SaveAssignment(_ context.Context, a *domain.Assignment) error {
	cur, ok := t.assignments[a.ID]
	if !ok {
		t.s.mu.Lock()
		cur, ok = t.s.assignments[a.ID]
		t.s.mu.Unlock()
		if !ok {
			return apperr.ErrNotFound
		}
		t.expectAssignments[a.ID] = cur.Version
	}
	if cur.Version != a.Version {
		return apperr.ErrConflict
	}
	a.Version++
	t.assignments[a.ID] = *a
	return nil
}

func (t *txRepo) ListAssignments(_ context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for _, a := range t.assignmentsView() {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *txRepo) RejectedCourierIDs(_ context.Context, orderID uuid.UUID) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	for _, a := range t.assignmentsView() {
		if a.OrderID != orderID || a.Status != domain.AssignmentRejected {
			continue
		}
		if _, ok := seen[a.CourierID]; ok {
			continue
		}
		seen[a.CourierID] = struct{}{}
		out = append(out, a.CourierID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *txRepo) FindEarning(_ context.Context, courierID int64, orderID uuid.UUID) (*domain.Earning, error) {
	for _, e := range t.newEarnings {
		if e.CourierID == courierID && e.OrderID == orderID {
			cp := e
			return &cp, nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, e := range t.s.earnings {
		if e.CourierID == courierID && e.OrderID == orderID {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *txRepo) InsertEarning(ctx context.Context, e *domain.Earning) error {
	existing, _ := t.FindEarning(ctx, e.CourierID, e.OrderID)
	if existing != nil {
		return apperr.ErrConflict
	}
	if e.EarnedAt.IsZero() {
		e.EarnedAt = time.Now().UTC()
	}
	t.s.mu.Lock()
	t.s.nextEarningID++
	e.ID = t.s.nextEarningID
	t.s.mu.Unlock()
	t.newEarnings = append(t.newEarnings, *e)
	return nil
}

var _ dispatchtx.Repository = (*txRepo)(nil)
