package handlers_test

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type stubCourierUsecase struct {
	getFn          func(ctx context.Context, id int64) (*domain.Courier, error)
	listFn         func(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	listEligibleFn func(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error)
	createFn       func(ctx context.Context, c *domain.Courier) (int64, error)
	updateStatusFn func(ctx context.Context, id int64, status domain.CourierStatus) (*domain.Courier, error)
	updateLocFn    func(ctx context.Context, id int64, lat, lon float64) (*domain.Courier, error)
	availabilityFn func(ctx context.Context, id int64) (domain.Availability, error)
}

func (s *stubCourierUsecase) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	return s.getFn(ctx, id)
}

func (s *stubCourierUsecase) List(ctx context.Context, limit, offset *int) ([]domain.Courier, error) {
	return s.listFn(ctx, limit, offset)
}

func (s *stubCourierUsecase) ListEligible(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error) {
	return s.listEligibleFn(ctx, f)
}

func (s *stubCourierUsecase) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	return s.createFn(ctx, c)
}

func (s *stubCourierUsecase) UpdateStatus(
	ctx context.Context, id int64, status domain.CourierStatus,
) (*domain.Courier, error) {
	return s.updateStatusFn(ctx, id, status)
}

func (s *stubCourierUsecase) UpdateLocation(ctx context.Context, id int64, lat, lon float64) (*domain.Courier, error) {
	return s.updateLocFn(ctx, id, lat, lon)
}

func (s *stubCourierUsecase) CheckAvailability(ctx context.Context, id int64) (domain.Availability, error) {
	return s.availabilityFn(ctx, id)
}

type courierActionFn func(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)

type stubDispatchUsecase struct {
	registerFn     func(ctx context.Context, o domain.Order) (bool, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, s domain.OrderStatus, actor, note string) (bool, error)
	dispatchFn     func(ctx context.Context, id uuid.UUID) (domain.DispatchResult, error)
	assignFn       courierActionFn
	acceptFn       courierActionFn
	rejectFn       func(ctx context.Context, id uuid.UUID, courierID int64, reason string) (domain.RejectResult, error)
	pickUpFn       courierActionFn
	startFn        courierActionFn
	deliverFn      courierActionFn
	activeFn       func(ctx context.Context, courierID int64) ([]domain.Order, error)
	historyFn      func(ctx context.Context, id uuid.UUID) ([]domain.Assignment, error)
}

func (s *stubDispatchUsecase) RegisterOrder(ctx context.Context, o domain.Order) (bool, error) {
	return s.registerFn(ctx, o)
}

func (s *stubDispatchUsecase) UpdateOrderStatus(
	ctx context.Context, id uuid.UUID, st domain.OrderStatus, actor, note string,
) (bool, error) {
	return s.updateStatusFn(ctx, id, st, actor, note)
}

func (s *stubDispatchUsecase) Dispatch(ctx context.Context, id uuid.UUID) (domain.DispatchResult, error) {
	return s.dispatchFn(ctx, id)
}

func (s *stubDispatchUsecase) AssignOrderToCourier(ctx context.Context, id uuid.UUID, courierID int64) (bool, error) {
	return s.assignFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) AcceptOrder(ctx context.Context, id uuid.UUID, courierID int64) (bool, error) {
	return s.acceptFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) RejectOrder(
	ctx context.Context, id uuid.UUID, courierID int64, reason string,
) (domain.RejectResult, error) {
	return s.rejectFn(ctx, id, courierID, reason)
}

func (s *stubDispatchUsecase) PickUpOrder(ctx context.Context, id uuid.UUID, courierID int64) (bool, error) {
	return s.pickUpFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) StartDelivery(ctx context.Context, id uuid.UUID, courierID int64) (bool, error) {
	return s.startFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) DeliverOrder(ctx context.Context, id uuid.UUID, courierID int64) (bool, error) {
	return s.deliverFn(ctx, id, courierID)
}

func (s *stubDispatchUsecase) GetActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error) {
	return s.activeFn(ctx, courierID)
}

func (s *stubDispatchUsecase) GetAssignmentHistory(ctx context.Context, id uuid.UUID) ([]domain.Assignment, error) {
	return s.historyFn(ctx, id)
}
