//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Dispatcher abstracts the subset of coordinator operations
// needed by orders Processor when handling order events
type Dispatcher interface {
	RegisterOrder(ctx context.Context, o domain.Order) (bool, error)
	Dispatch(ctx context.Context, orderID uuid.UUID) (domain.DispatchResult, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, actor, note string) (bool, error)
}
