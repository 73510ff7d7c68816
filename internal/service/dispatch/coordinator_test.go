package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/notify/mocks"
	"courier-dispatch/internal/repository/memory"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/earnings"
	"courier-dispatch/internal/service/matching"
	"courier-dispatch/internal/service/pricing"
)

var pickup = geo.Point{Lat: 41.01, Lon: 29.01}

type env struct {
	store   *memory.Store
	coord   *dispatch.Coordinator
	metrics *metrics.Dispatch
	a, b    int64
}

func newCtrl(t *testing.T) *gomock.Controller {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return ctrl
}

func quietSink(t *testing.T) notify.Sink {
	t.Helper()
	s := mocks.NewMockSink(newCtrl(t))
	s.EXPECT().NotifyCourierOffer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.EXPECT().NotifyOrderStatusChanged(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	s.EXPECT().NotifyCourierLocationBroadcast(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return s
}

func addCourier(t *testing.T, s *memory.Store, phone string, lat, lon float64, capacity int) int64 {
	t.Helper()
	id, err := s.CreateCourier(context.Background(), &domain.Courier{
		Name: phone, Phone: phone, Active: true, Status: domain.CourierAvailable,
		Vehicle: domain.VehicleMotorcycle, Location: &geo.Point{Lat: lat, Lon: lon}, MaxActiveOrders: capacity,
	})
	require.NoError(t, err)
	return id
}

func newEnv(t *testing.T, sink notify.Sink) env {
	t.Helper()
	s := memory.New()
	mx := metrics.NewDispatch()
	engine := matching.New(pricing.New(pricing.DefaultConfig()), nil, matching.Config{}, logx.Nop())
	coord := dispatch.New(s, engine, earnings.New(), sink, mx, dispatch.Config{}, logx.Nop())
	return env{
		store:   s,
		coord:   coord,
		metrics: mx,
		a:       addCourier(t, s, "+70000000001", 41.00, 29.00, 2),
		b:       addCourier(t, s, "+70000000002", 41.50, 29.50, 2),
	}
}

func (e env) newOrder(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	ok, err := e.coord.RegisterOrder(context.Background(), domain.Order{
		ID: id, Number: "N-" + id.String()[:4], VendorID: 1, CustomerID: "c1",
		Total: decimal.NewFromInt(100), Tip: decimal.NewFromInt(5),
		Pickup: pickup, Dropoff: geo.Point{Lat: 41.03, Lon: 29.03},
	})
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func (e env) courier(t *testing.T, id int64) *domain.Courier {
	t.Helper()
	c, err := e.store.GetCourier(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestDispatch_NearestThenReassignOnReject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)
	require.Equal(t, e.a, res.CourierID)

	again, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, again.AlreadyAssigned)
	require.Equal(t, res.AssignmentID, again.AssignmentID)

	rej, err := e.coord.RejectOrder(ctx, orderID, e.a, "  traffic is bad ")
	require.NoError(t, err)
	require.True(t, rej.Rejected)
	require.True(t, rej.Reassigned)
	require.Equal(t, e.b, rej.NextCourierID)

	history := e.store.Assignments(orderID)
	require.Len(t, history, 2)
	require.Equal(t, domain.AssignmentRejected, history[0].Status)
	require.Equal(t, "traffic is bad", history[0].RejectReason)
	require.False(t, history[0].Active)
	require.True(t, history[1].Active)

	rej, err = e.coord.RejectOrder(ctx, orderID, e.b, "too far from me")
	require.NoError(t, err)
	require.True(t, rej.Rejected)
	require.True(t, rej.NoCandidate, "rejecters are never offered again")
	require.Equal(t, domain.OrderPending, e.store.Order(orderID).Status)

	require.Equal(t, 2.0, testutil.ToFloat64(e.metrics.Offers))
	require.Equal(t, 2.0, testutil.ToFloat64(e.metrics.Rejects))
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.NoCandidate))
}

func TestRejectOrder_Validation(t *testing.T) {
	t.Parallel()

	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	_, err := e.coord.RejectOrder(context.Background(), orderID, e.a, "   short   ")
	require.ErrorIs(t, err, apperr.ErrInvalidRejectReason)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = e.coord.RejectOrder(context.Background(), uuid.Nil, e.a, "traffic is bad")
	require.ErrorIs(t, err, apperr.ErrInvalid)

	res, err := e.coord.RejectOrder(context.Background(), orderID, e.a, "traffic is bad")
	require.NoError(t, err)
	require.False(t, res.Rejected, "nothing was offered yet")
}

func TestAcceptOrder_ExactlyOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)
	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)

	const n = 16
	var (
		wg    sync.WaitGroup
		wins  int32
		fails int32
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
			if err != nil {
				atomic.AddInt32(&fails, 1)
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Zero(t, fails)
	require.Equal(t, int32(1), wins)
	require.Equal(t, 1, e.courier(t, e.a).CurrentActiveOrders)
	require.Equal(t, domain.OrderPreparing, e.store.Order(orderID).Status)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Accepts.WithLabelValues("won")))
	require.Equal(t, float64(n-1), testutil.ToFloat64(e.metrics.Accepts.WithLabelValues("lost")))
}

func TestAcceptOrder_WrongCourierOrState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok, "no offer yet")

	_, err = e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)

	ok, err = e.coord.AcceptOrder(ctx, orderID, e.b)
	require.NoError(t, err)
	require.False(t, ok, "offer belongs to A")

	ok, err = e.coord.AcceptOrder(ctx, uuid.New(), e.a)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.coord.AcceptOrder(ctx, orderID, 0)
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCapacity_FullCourierGetsNoOffers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	engine := matching.New(pricing.New(pricing.DefaultConfig()), nil, matching.Config{}, logx.Nop())
	coord := dispatch.New(s, engine, earnings.New(), nil, nil, dispatch.Config{}, logx.Nop())
	only := addCourier(t, s, "+70000000009", 41.0, 29.0, 1)

	register := func() uuid.UUID {
		id := uuid.New()
		ok, err := coord.RegisterOrder(ctx, domain.Order{ID: id, Pickup: pickup, Dropoff: pickup})
		require.NoError(t, err)
		require.True(t, ok)
		return id
	}
	first, second := register(), register()

	res, err := coord.Dispatch(ctx, first)
	require.NoError(t, err)
	require.Equal(t, only, res.CourierID)
	ok, err := coord.AcceptOrder(ctx, first, only)
	require.NoError(t, err)
	require.True(t, ok)

	c, err := s.GetCourier(ctx, only)
	require.NoError(t, err)
	require.Equal(t, domain.CourierBusy, c.Status)

	res, err = coord.Dispatch(ctx, second)
	require.NoError(t, err)
	require.True(t, res.NoCandidate)
	require.Equal(t, domain.OrderPending, s.Order(second).Status)

	ok, err = coord.AssignOrderToCourier(ctx, second, only)
	require.NoError(t, err)
	require.False(t, ok, "manual assignment respects capacity")
}

func TestLifecycle_DeliverRecordsEarningOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)

	ok, err := e.coord.PickUpOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok, "pickup before accept")

	ok, err = e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.coord.DeliverOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok, "deliver before pickup")

	ok, err = e.coord.PickUpOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.OrderOutForDelivery, e.store.Order(orderID).Status)

	ok, err = e.coord.PickUpOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok, "second pickup fails")

	ok, err = e.coord.StartDelivery(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)

	active, err := e.coord.GetActiveOrdersForCourier(ctx, e.a)
	require.NoError(t, err)
	require.Len(t, active, 1)

	ok, err = e.coord.DeliverOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.coord.DeliverOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok)

	o := e.store.Order(orderID)
	require.Equal(t, domain.OrderDelivered, o.Status)
	require.NotNil(t, o.DeliveredAt)

	c := e.courier(t, e.a)
	require.Zero(t, c.CurrentActiveOrders)
	require.Equal(t, 1, c.TotalDeliveries)
	require.Equal(t, domain.CourierAvailable, c.Status)

	earned := e.store.Earnings()
	require.Len(t, earned, 1)
	require.True(t, earned[0].Total.Equal(res.DeliveryFee.Add(decimal.NewFromInt(5))))
	require.True(t, c.TotalEarnings.Equal(earned[0].Total))

	active, err = e.coord.GetActiveOrdersForCourier(ctx, e.a)
	require.NoError(t, err)
	require.Empty(t, active)

	statuses := make([]domain.OrderStatus, 0)
	for _, h := range e.store.History(orderID) {
		statuses = append(statuses, h.Status)
	}
	require.Equal(t, []domain.OrderStatus{
		domain.OrderPending, domain.OrderPreparing, domain.OrderOutForDelivery, domain.OrderDelivered,
	}, statuses)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Deliveries))
}

func TestUpdateOrderStatus_CancelReleasesCourier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	_, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, e.courier(t, e.a).CurrentActiveOrders)

	ok, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderCancelled, domain.ActorVendor, "out of stock")
	require.NoError(t, err)
	require.True(t, ok)

	o := e.store.Order(orderID)
	require.Equal(t, domain.OrderCancelled, o.Status)
	require.Equal(t, "out of stock", o.CancelReason)
	require.Zero(t, e.courier(t, e.a).CurrentActiveOrders)

	assignments := e.store.Assignments(orderID)
	require.Len(t, assignments, 1)
	require.Equal(t, domain.AssignmentCancelled, assignments[0].Status)
	require.False(t, assignments[0].Active)

	_, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderPreparing, domain.ActorVendor, "")
	require.ErrorIs(t, err, apperr.ErrInvalidStatusTransition)

	_, err = e.coord.UpdateOrderStatus(ctx, uuid.New(), domain.OrderPreparing, domain.ActorVendor, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateOrderStatus_TransitionTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))

	tests := []struct {
		name  string
		path  []domain.OrderStatus
		ok    bool
		final domain.OrderStatus
	}{
		{"pending to preparing", []domain.OrderStatus{domain.OrderPreparing}, true, domain.OrderPreparing},
		{"pending to delivered", []domain.OrderStatus{domain.OrderDelivered}, false, domain.OrderPending},
		{"pending to out for delivery", []domain.OrderStatus{domain.OrderOutForDelivery}, false, domain.OrderPending},
		{"full vendor path", []domain.OrderStatus{
			domain.OrderPreparing, domain.OrderOutForDelivery, domain.OrderDelivered,
		}, true, domain.OrderDelivered},
		{"out for delivery cannot cancel", []domain.OrderStatus{
			domain.OrderPreparing, domain.OrderOutForDelivery, domain.OrderCancelled,
		}, false, domain.OrderOutForDelivery},
	}
	for _, tt := range tests {
		id := e.newOrder(t)
		var lastErr error
		for _, st := range tt.path {
			_, lastErr = e.coord.UpdateOrderStatus(ctx, id, st, domain.ActorVendor, "")
		}
		if tt.ok {
			require.NoError(t, lastErr, tt.name)
		} else {
			require.ErrorIs(t, lastErr, apperr.ErrInvalidStatusTransition, tt.name)
		}
		require.Equal(t, tt.final, e.store.Order(id).Status, tt.name)
	}
}

func TestUpdateOrderStatus_DeliveredSettlesCourier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	_, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	_, err = e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	_, err = e.coord.PickUpOrder(ctx, orderID, e.a)
	require.NoError(t, err)

	ok, err := e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderDelivered, domain.ActorAdmin, "confirmed by phone")
	require.NoError(t, err)
	require.True(t, ok)

	c := e.courier(t, e.a)
	require.Zero(t, c.CurrentActiveOrders)
	require.Equal(t, 1, c.TotalDeliveries)
	require.Len(t, e.store.Earnings(), 1)
}

func TestUpdateOrderStatus_DeliveredSettlesAcceptedAssignment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	_, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)

	// вендор ведёт заказ сам, курьер так и не отметил забор
	ok, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderOutForDelivery, domain.ActorVendor, "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, e.courier(t, e.a).CurrentActiveOrders)

	ok, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderDelivered, domain.ActorVendor, "handed over")
	require.NoError(t, err)
	require.True(t, ok)

	c := e.courier(t, e.a)
	require.Zero(t, c.CurrentActiveOrders)
	require.Equal(t, 1, c.TotalDeliveries)
	require.Equal(t, domain.CourierAvailable, c.Status)
	require.Len(t, e.store.Earnings(), 1)

	assignments := e.store.Assignments(orderID)
	require.Len(t, assignments, 1)
	require.Equal(t, domain.AssignmentDelivered, assignments[0].Status)
	require.NotNil(t, assignments[0].DeliveredAt)

	ok, err = e.coord.PickUpOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = e.coord.DeliverOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, e.store.Earnings(), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Deliveries))
}

func TestUpdateOrderStatus_WithdrawsUnansweredOffer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)

	_, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderPreparing, domain.ActorVendor, "")
	require.NoError(t, err)
	assignments := e.store.Assignments(orderID)
	require.Equal(t, domain.AssignmentOffered, assignments[0].Status)
	require.True(t, assignments[0].Active, "offer survives while the order is still dispatchable")

	_, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderOutForDelivery, domain.ActorVendor, "")
	require.NoError(t, err)
	assignments = e.store.Assignments(orderID)
	require.Equal(t, domain.AssignmentCancelled, assignments[0].Status)
	require.False(t, assignments[0].Active)

	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, e.courier(t, e.a).CurrentActiveOrders)

	ok, err = e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderDelivered, domain.ActorVendor, "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, e.store.Earnings())
	require.Zero(t, e.courier(t, e.a).TotalDeliveries)
}

func TestDispatch_PreparingAndTerminalOrders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))

	preparing := e.newOrder(t)
	_, err := e.coord.UpdateOrderStatus(ctx, preparing, domain.OrderPreparing, domain.ActorVendor, "")
	require.NoError(t, err)

	res, err := e.coord.Dispatch(ctx, preparing)
	require.NoError(t, err)
	require.True(t, res.Offered)
	require.False(t, res.NotDispatchable)
	require.Equal(t, e.a, res.CourierID)

	cancelled := e.newOrder(t)
	_, err = e.coord.UpdateOrderStatus(ctx, cancelled, domain.OrderCancelled, domain.ActorVendor, "")
	require.NoError(t, err)

	res, err = e.coord.Dispatch(ctx, cancelled)
	require.NoError(t, err)
	require.True(t, res.NotDispatchable)
	require.False(t, res.Offered)
	require.False(t, res.NoCandidate)
	require.Empty(t, e.store.Assignments(cancelled))

	_, err = e.coord.Dispatch(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssignOrderToCourier_Supersedes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	orderID := e.newOrder(t)

	_, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	_, err = e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)

	ok, err := e.coord.AssignOrderToCourier(ctx, orderID, e.b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, e.courier(t, e.a).CurrentActiveOrders)

	history, err := e.coord.GetAssignmentHistory(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, e.b, history[0].CourierID)
	require.Equal(t, domain.AssignmentOffered, history[0].Status)
	require.Equal(t, domain.AssignmentCancelled, history[1].Status)

	ok, err = e.coord.AssignOrderToCourier(ctx, orderID, e.b)
	require.NoError(t, err)
	require.True(t, ok, "same courier is a no-op")
	history, err = e.coord.GetAssignmentHistory(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	_, err = e.coord.AcceptOrder(ctx, orderID, e.b)
	require.NoError(t, err)
	_, err = e.coord.PickUpOrder(ctx, orderID, e.b)
	require.NoError(t, err)

	ok, err = e.coord.AssignOrderToCourier(ctx, orderID, e.a)
	require.NoError(t, err)
	require.False(t, ok, "picked up orders stay with their courier")

	_, err = e.coord.GetAssignmentHistory(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterOrder_DuplicateAndValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t, quietSink(t))
	id := e.newOrder(t)

	ok, err := e.coord.RegisterOrder(ctx, domain.Order{ID: id, Pickup: pickup, Dropoff: pickup})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.coord.RegisterOrder(ctx, domain.Order{ID: uuid.New(), Pickup: geo.Point{Lat: 91}, Dropoff: pickup})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = e.coord.RegisterOrder(ctx, domain.Order{
		ID: uuid.New(), Pickup: pickup, Dropoff: pickup, Tip: decimal.NewFromInt(-1),
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := mocks.NewMockSink(newCtrl(t))
	boom := errors.New("broker down")
	sink.EXPECT().NotifyCourierOffer(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom).Times(1)
	sink.EXPECT().NotifyOrderStatusChanged(gomock.Any(), gomock.Any(), domain.OrderPreparing).Return(boom).Times(1)

	e := newEnv(t, sink)
	orderID := e.newOrder(t)

	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)

	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.NotifyFailures.WithLabelValues(notify.KindOffer)))
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.NotifyFailures.WithLabelValues(notify.KindOrderStatus)))
}

func TestAcceptOrder_AlwaysNotifiesVendor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := mocks.NewMockSink(newCtrl(t))
	sink.EXPECT().NotifyCourierOffer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
	// один раз от вендора, один раз от принятия курьером
	sink.EXPECT().NotifyOrderStatusChanged(gomock.Any(), gomock.Any(), domain.OrderPreparing).Return(nil).Times(2)

	e := newEnv(t, sink)
	orderID := e.newOrder(t)

	_, err := e.coord.UpdateOrderStatus(ctx, orderID, domain.OrderPreparing, domain.ActorVendor, "")
	require.NoError(t, err)
	res, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)

	ok, err := e.coord.AcceptOrder(ctx, orderID, e.a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.OrderPreparing, e.store.Order(orderID).Status)
}

func TestRejectOrder_RecordsReasonAndNotifiesVendor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := mocks.NewMockSink(newCtrl(t))
	sink.EXPECT().NotifyCourierOffer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	sink.EXPECT().NotifyOrderStatusChanged(gomock.Any(), gomock.Any(), domain.OrderPending).Return(nil).Times(1)

	e := newEnv(t, sink)
	orderID := e.newOrder(t)

	_, err := e.coord.Dispatch(ctx, orderID)
	require.NoError(t, err)
	rej, err := e.coord.RejectOrder(ctx, orderID, e.a, "traffic is bad")
	require.NoError(t, err)
	require.True(t, rej.Reassigned)

	history := e.store.History(orderID)
	require.Len(t, history, 2)
	last := history[len(history)-1]
	require.Equal(t, domain.OrderPending, last.Status)
	require.Equal(t, domain.ActorCourier, last.Actor)
	require.Contains(t, last.Note, "traffic is bad")
	require.Equal(t, domain.OrderPending, e.store.Order(orderID).Status)
}

func TestNotifyRunsWithOwnDeadline(t *testing.T) {
	t.Parallel()

	sink := mocks.NewMockSink(newCtrl(t))
	sink.EXPECT().NotifyCourierOffer(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int64, _ uuid.UUID) error {
			_, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)
			return ctx.Err()
		})

	e := newEnv(t, sink)
	orderID := e.newOrder(t)

	res, err := e.coord.Dispatch(context.Background(), orderID)
	require.NoError(t, err)
	require.True(t, res.Offered)
	require.Zero(t, testutil.ToFloat64(e.metrics.NotifyFailures.WithLabelValues(notify.KindOffer)))
}

func TestRedispatchStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	engine := matching.New(pricing.New(pricing.DefaultConfig()), nil, matching.Config{}, logx.Nop())
	mx := metrics.NewDispatch()
	coord := dispatch.New(s, engine, earnings.New(), notify.Nop(), mx, dispatch.Config{}, logx.Nop())

	id := uuid.New()
	_, err := coord.RegisterOrder(ctx, domain.Order{
		ID: id, Pickup: pickup, Dropoff: pickup, CreatedAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)

	res, err := coord.Dispatch(ctx, id)
	require.NoError(t, err)
	require.True(t, res.NoCandidate)

	addCourier(t, s, "+70000000003", 41.0, 29.0, 1)

	n, err := coord.RedispatchStale(ctx, 30*time.Second, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = coord.RedispatchStale(ctx, 30*time.Second, 10)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 2.0, testutil.ToFloat64(mx.Redispatches))
}

func TestRedispatchStale_PreparingOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()
	engine := matching.New(pricing.New(pricing.DefaultConfig()), nil, matching.Config{}, logx.Nop())
	coord := dispatch.New(s, engine, earnings.New(), notify.Nop(), metrics.NewDispatch(), dispatch.Config{}, logx.Nop())

	id := uuid.New()
	_, err := coord.RegisterOrder(ctx, domain.Order{
		ID: id, Pickup: pickup, Dropoff: pickup, CreatedAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = coord.UpdateOrderStatus(ctx, id, domain.OrderPreparing, domain.ActorVendor, "")
	require.NoError(t, err)

	courierID := addCourier(t, s, "+70000000004", 41.0, 29.0, 1)

	n, err := coord.RedispatchStale(ctx, 30*time.Second, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assignments := s.Assignments(id)
	require.Len(t, assignments, 1)
	require.Equal(t, courierID, assignments[0].CourierID)
	require.Equal(t, domain.AssignmentOffered, assignments[0].Status)
	require.Equal(t, domain.OrderPreparing, s.Order(id).Status)
}
