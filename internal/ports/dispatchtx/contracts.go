package dispatchtx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Repository is the transactional view of dispatch storage.
// Getters return (nil, nil) when the row does not exist.
// Save* methods compare the entity Version with the stored one and return apperr.ErrConflict on mismatch;
// on success the entity Version is bumped.
type Repository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	SaveOrder(ctx context.Context, o *domain.Order) error
	ListActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error)
	ListUndispatchedOrders(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error)
	AppendStatusHistory(ctx context.Context, h domain.StatusHistory) error

	GetCourier(ctx context.Context, id int64) (*domain.Courier, error)
	SaveCourier(ctx context.Context, c *domain.Courier) error
	ListEligibleCouriers(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error)

	GetActiveAssignment(ctx context.Context, orderID uuid.UUID) (*domain.Assignment, error)
	InsertAssignment(ctx context.Context, a *domain.Assignment) error
	SaveAssignment(ctx context.Context, a *domain.Assignment) error
	ListAssignments(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error)
	RejectedCourierIDs(ctx context.Context, orderID uuid.UUID) ([]int64, error)

	FindEarning(ctx context.Context, courierID int64, orderID uuid.UUID) (*domain.Earning, error)
	InsertEarning(ctx context.Context, e *domain.Earning) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
