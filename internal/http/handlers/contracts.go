package handlers

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
)

type courierUsecase interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	ListEligible(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.CourierStatus) (*domain.Courier, error)
	UpdateLocation(ctx context.Context, id int64, lat, lon float64) (*domain.Courier, error)
	CheckAvailability(ctx context.Context, id int64) (domain.Availability, error)
}

// NewCourierUsecase wires a courier Service into a courierUsecase.
func NewCourierUsecase(service *courier.Service) courierUsecase {
	return service
}

type dispatchUsecase interface {
	RegisterOrder(ctx context.Context, o domain.Order) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, actor, note string) (bool, error)
	Dispatch(ctx context.Context, orderID uuid.UUID) (domain.DispatchResult, error)
	AssignOrderToCourier(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	AcceptOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	RejectOrder(ctx context.Context, orderID uuid.UUID, courierID int64, reason string) (domain.RejectResult, error)
	PickUpOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	StartDelivery(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	DeliverOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)
	GetActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error)
	GetAssignmentHistory(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error)
}

// NewDispatchUsecase wires a dispatch Coordinator into a dispatchUsecase.
func NewDispatchUsecase(c *dispatch.Coordinator) dispatchUsecase {
	return c
}
