package courier

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/notify"
)

// courierStore defines non-transactional storage operations required by the directory.
type courierStore interface {
	GetCourier(ctx context.Context, id int64) (*domain.Courier, error)
	ListCouriers(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	CreateCourier(ctx context.Context, c *domain.Courier) (int64, error)
}

// locationIndex mirrors courier positions for the matching prefilter.
type locationIndex interface {
	Upsert(ctx context.Context, courierID int64, p geo.Point) error
	Remove(ctx context.Context, courierID int64) error
}

// broadcaster fans courier positions out to the orders they are carrying.
type broadcaster interface {
	GetActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error)
	BroadcastLocation(ctx context.Context, b notify.LocationBroadcast)
}
