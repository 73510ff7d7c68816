package matching

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

// LocationIndex narrows candidates to couriers near a point.
type LocationIndex interface {
	Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]int64, error)
}

// Pricer fixes the delivery fee of an offer.
type Pricer interface {
	Fee(o domain.Order, vehicle domain.VehicleType, at time.Time) decimal.Decimal
}
