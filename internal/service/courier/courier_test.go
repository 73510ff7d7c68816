package courier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/repository/memory"
	testlog "courier-dispatch/internal/testutil"
)

type fakeIndex struct {
	mu      sync.Mutex
	upserts map[int64]geo.Point
	removed []int64
	err     error
}

func newFakeIndex() *fakeIndex { return &fakeIndex{upserts: map[int64]geo.Point{}} }

func (f *fakeIndex) Upsert(_ context.Context, id int64, p geo.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[id] = p
	return f.err
}

func (f *fakeIndex) Remove(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return f.err
}

type fakeBroadcaster struct {
	activeFn func(ctx context.Context, courierID int64) ([]domain.Order, error)
	sent     []notify.LocationBroadcast
}

func (f *fakeBroadcaster) GetActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error) {
	return f.activeFn(ctx, courierID)
}

func (f *fakeBroadcaster) BroadcastLocation(_ context.Context, b notify.LocationBroadcast) {
	f.sent = append(f.sent, b)
}

var noon = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *memory.Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return noon })}, opts...)
	return NewService(store, store, time.Second, logx.Nop(), opts...)
}

func seed(t *testing.T, store *memory.Store, c domain.Courier) int64 {
	t.Helper()
	if c.Phone == "" {
		c.Phone = "+70000000001"
	}
	if c.MaxActiveOrders == 0 {
		c.MaxActiveOrders = 2
	}
	c.Active = true
	id, err := store.CreateCourier(context.Background(), &c)
	require.NoError(t, err)
	return id
}

func TestNewService_Timeout(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3*time.Second, NewService(nil, nil, 0, nil).operationTimeout)
	require.Equal(t, 3*time.Second, NewService(nil, nil, -time.Second, nil).operationTimeout)
	require.Equal(t, 5*time.Second, NewService(nil, nil, 5*time.Second, nil).operationTimeout)
}

func TestValidateCreate(t *testing.T) {
	t.Parallel()

	valid := func() *domain.Courier {
		return &domain.Courier{Name: " Artem ", Phone: "+70000000000", MaxActiveOrders: 1}
	}

	c := valid()
	require.NoError(t, validateCreate(c))
	require.Equal(t, "Artem", c.Name)
	require.Equal(t, domain.CourierOffline, c.Status)
	require.Equal(t, domain.VehicleFoot, c.Vehicle)

	tests := map[string]func(c *domain.Courier){
		"empty name":    func(c *domain.Courier) { c.Name = "   " },
		"bad phone":     func(c *domain.Courier) { c.Phone = "123" },
		"bad status":    func(c *domain.Courier) { c.Status = "boom" },
		"bad vehicle":   func(c *domain.Courier) { c.Vehicle = "rocket" },
		"zero capacity": func(c *domain.Courier) { c.MaxActiveOrders = 0 },
		"bad location":  func(c *domain.Courier) { c.Location = &geo.Point{Lat: 100} },
		"bad hours": func(c *domain.Courier) {
			c.WorkingHours = domain.WorkingHours{Start: 60, End: 60, Enforce: true}
		},
	}
	for name, mutate := range tests {
		c := valid()
		mutate(c)
		require.ErrorIs(t, validateCreate(c), apperr.ErrInvalid, name)
	}
	require.ErrorIs(t, validateCreate(nil), apperr.ErrInvalid)
}

func TestService_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	idx := newFakeIndex()
	svc := newTestService(store, WithLocationIndex(idx))

	id, err := svc.Create(ctx, &domain.Courier{
		Name: "Artem", Phone: "+71111111111", Status: domain.CourierAvailable,
		Vehicle: domain.VehicleCar, MaxActiveOrders: 3, Location: &geo.Point{Lat: 41, Lon: 29},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, got.Active)
	require.Equal(t, domain.VehicleCar, got.Vehicle)
	require.NotNil(t, got.LocationUpdatedAt)
	require.Equal(t, geo.Point{Lat: 41, Lon: 29}, idx.upserts[id])

	_, err = svc.Create(ctx, &domain.Courier{Name: "Dup", Phone: "+71111111111", MaxActiveOrders: 1})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := svc.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestService_UpdateStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	idx := newFakeIndex()
	svc := newTestService(store, WithLocationIndex(idx))

	night := seed(t, store, domain.Courier{
		Name: "night", Phone: "+70000000001", Status: domain.CourierOffline,
		WorkingHours: domain.WorkingHours{Start: 22 * 60, End: 6 * 60, Enforce: true},
	})
	_, err := svc.UpdateStatus(ctx, night, domain.CourierAvailable)
	require.ErrorIs(t, err, apperr.ErrOutsideWorkingHours)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	loaded := seed(t, store, domain.Courier{
		Name: "loaded", Phone: "+70000000002", Status: domain.CourierBusy,
		CurrentActiveOrders: 2, MaxActiveOrders: 2, Location: &geo.Point{Lat: 41, Lon: 29},
	})
	_, err = svc.UpdateStatus(ctx, loaded, domain.CourierOffline)
	require.ErrorIs(t, err, apperr.ErrHasActiveOrders)

	c, err := svc.UpdateStatus(ctx, loaded, domain.CourierAvailable)
	require.NoError(t, err)
	require.Equal(t, domain.CourierBusy, c.Status, "no free slots")

	free := seed(t, store, domain.Courier{
		Name: "free", Phone: "+70000000003", Status: domain.CourierOffline,
		Location: &geo.Point{Lat: 41.2, Lon: 29.2},
	})
	c, err = svc.UpdateStatus(ctx, free, domain.CourierAvailable)
	require.NoError(t, err)
	require.Equal(t, domain.CourierAvailable, c.Status)
	require.Contains(t, idx.upserts, free)

	_, err = svc.UpdateStatus(ctx, free, domain.CourierOffline)
	require.NoError(t, err)
	require.Contains(t, idx.removed, free)

	_, err = svc.UpdateStatus(ctx, 999, domain.CourierOffline)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.UpdateStatus(ctx, free, "sleeping")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestService_UpdateLocation_Broadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	idx := newFakeIndex()
	first, second := uuid.New(), uuid.New()
	b := &fakeBroadcaster{activeFn: func(_ context.Context, _ int64) ([]domain.Order, error) {
		return []domain.Order{{ID: first}, {ID: second}}, nil
	}}
	svc := newTestService(store, WithLocationIndex(idx), WithBroadcaster(b))

	id := seed(t, store, domain.Courier{
		Name: "rider", Status: domain.CourierAvailable, CurrentActiveOrders: 1,
	})

	_, err := svc.UpdateLocation(ctx, id, 91, 0)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	c, err := svc.UpdateLocation(ctx, id, 41.05, 29.05)
	require.NoError(t, err)
	require.Equal(t, geo.Point{Lat: 41.05, Lon: 29.05}, *c.Location)
	require.Equal(t, noon, *c.LocationUpdatedAt)
	require.Equal(t, geo.Point{Lat: 41.05, Lon: 29.05}, idx.upserts[id])

	require.Len(t, b.sent, 2)
	require.Equal(t, first, b.sent[0].OrderID)
	require.Equal(t, second, b.sent[1].OrderID)
	require.Equal(t, id, b.sent[1].CourierID)
	require.Equal(t, noon, b.sent[0].At)
}

func TestService_UpdateLocation_SideEffectFailuresAreLogged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	idx := newFakeIndex()
	idx.err = errors.New("redis down")
	b := &fakeBroadcaster{activeFn: func(_ context.Context, _ int64) ([]domain.Order, error) {
		return nil, errors.New("db down")
	}}
	rec := testlog.New()
	svc := NewService(store, store, time.Second, rec.Logger(), WithLocationIndex(idx), WithBroadcaster(b))

	id := seed(t, store, domain.Courier{Name: "rider", Status: domain.CourierAvailable, CurrentActiveOrders: 1})
	_, err := svc.UpdateLocation(ctx, id, 41, 29)
	require.NoError(t, err)
	require.Empty(t, b.sent)

	var msgs []string
	for _, e := range rec.Entries() {
		if e.Level == "warn" {
			msgs = append(msgs, e.Msg)
		}
	}
	require.Equal(t, []string{"location index sync failed", "active orders lookup failed"}, msgs)
}

func TestService_CheckAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	svc := newTestService(store, WithWorkingHoursLocation(time.FixedZone("TRT", 3*60*60)))

	ready := seed(t, store, domain.Courier{
		Name: "ready", Phone: "+70000000001", Status: domain.CourierAvailable,
		Location:     &geo.Point{Lat: 41, Lon: 29},
		WorkingHours: domain.WorkingHours{Start: 9 * 60, End: 18 * 60, Enforce: true},
	})
	res, err := svc.CheckAvailability(ctx, ready)
	require.NoError(t, err)
	require.True(t, res.Eligible)
	require.Empty(t, res.Reasons)

	// 12:00 UTC is 15:00 in TRT, outside 06:00-10:00
	late := seed(t, store, domain.Courier{
		Name: "late", Phone: "+70000000002", Status: domain.CourierBusy,
		CurrentActiveOrders: 1, MaxActiveOrders: 1,
		WorkingHours: domain.WorkingHours{Start: 6 * 60, End: 10 * 60, Enforce: true},
	})
	res, err = svc.CheckAvailability(ctx, late)
	require.NoError(t, err)
	require.False(t, res.Eligible)
	require.Equal(t, []string{ReasonNotAvailable, ReasonAtCapacity, ReasonOutsideShift, ReasonNoLocation}, res.Reasons)

	_, err = svc.CheckAvailability(ctx, 404)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_ListEligible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	svc := newTestService(store)

	a := seed(t, store, domain.Courier{
		Name: "a", Phone: "+70000000001", Status: domain.CourierAvailable, Location: &geo.Point{Lat: 41, Lon: 29},
	})
	b := seed(t, store, domain.Courier{
		Name: "b", Phone: "+70000000002", Status: domain.CourierAvailable, Location: &geo.Point{Lat: 41, Lon: 29},
	})
	seed(t, store, domain.Courier{Name: "c", Phone: "+70000000003", Status: domain.CourierOffline})
	// смена 06:00-10:00 UTC, сейчас полдень
	seed(t, store, domain.Courier{
		Name: "d", Phone: "+70000000004", Status: domain.CourierAvailable, Location: &geo.Point{Lat: 41, Lon: 29},
		WorkingHours: domain.WorkingHours{Start: 6 * 60, End: 10 * 60, Enforce: true},
	})

	got, err := svc.ListEligible(ctx, domain.CandidateFilter{ExcludeIDs: []int64{a}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, b, got[0].ID)

	all, err := svc.ListEligible(ctx, domain.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
