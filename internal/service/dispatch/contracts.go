package dispatch

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

type matcher interface {
	FindBestCourier(ctx context.Context, tx dispatchtx.Repository, o domain.Order, excluded []int64) (*domain.Assignment, error)
	Offer(ctx context.Context, tx dispatchtx.Repository, o domain.Order, c domain.Courier) (*domain.Assignment, error)
}

type earner interface {
	Record(ctx context.Context, tx dispatchtx.Repository, c *domain.Courier, a domain.Assignment) (domain.Earning, bool, error)
}
