package handlers

import (
	"fmt"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

func courierToDTO(c *domain.Courier) courierDTO {
	dto := courierDTO{
		ID:                  c.ID,
		Name:                c.Name,
		Phone:               c.Phone,
		Active:              c.Active,
		Status:              c.Status,
		Vehicle:             c.Vehicle,
		Location:            c.Location,
		LocationUpdatedAt:   c.LocationUpdatedAt,
		CurrentActiveOrders: c.CurrentActiveOrders,
		MaxActiveOrders:     c.MaxActiveOrders,
		TotalDeliveries:     c.TotalDeliveries,
		TotalEarnings:       c.TotalEarnings,
		CurrentDayEarnings:  c.CurrentDayEarnings,
		AverageRating:       c.AverageRating,
	}
	if c.WorkingHours.Enforce {
		dto.WorkingHours = &workingHoursDTO{
			Start: domain.FormatClock(c.WorkingHours.Start),
			End:   domain.FormatClock(c.WorkingHours.End),
		}
	}
	return dto
}

func couriersToDTO(in []domain.Courier) []courierDTO {
	out := make([]courierDTO, 0, len(in))
	for i := range in {
		out = append(out, courierToDTO(&in[i]))
	}
	return out
}

func courierFromCreate(req createCourierRequest) (*domain.Courier, error) {
	c := &domain.Courier{
		Name:            req.Name,
		Phone:           req.Phone,
		Status:          req.Status,
		Vehicle:         req.Vehicle,
		MaxActiveOrders: req.MaxActiveOrders,
		Location:        req.Location,
	}
	if req.WorkingHours != nil {
		start, err := domain.ParseClock(req.WorkingHours.Start)
		if err != nil {
			return nil, err
		}
		end, err := domain.ParseClock(req.WorkingHours.End)
		if err != nil {
			return nil, err
		}
		c.WorkingHours = domain.WorkingHours{Start: start, End: end, Enforce: true}
	}
	return c, nil
}

func orderToDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:           o.ID.String(),
		Number:       o.Number,
		VendorID:     o.VendorID,
		CustomerID:   o.CustomerID,
		Total:        o.Total,
		Tip:          o.Tip,
		Pickup:       o.Pickup,
		Dropoff:      o.Dropoff,
		Status:       o.Status,
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
		DeliveredAt:  o.DeliveredAt,
	}
}

func ordersToDTO(in []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(in))
	for _, o := range in {
		out = append(out, orderToDTO(o))
	}
	return out
}

// orderFromCreate builds a pending order; an empty id gets a fresh uuid.
func orderFromCreate(req createOrderRequest) (domain.Order, error) {
	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w: order id %q", apperr.ErrInvalid, req.ID)
		}
		id = parsed
	}
	return domain.Order{
		ID:         id,
		Number:     req.Number,
		VendorID:   req.VendorID,
		CustomerID: req.CustomerID,
		Total:      req.Total,
		Tip:        req.Tip,
		Pickup:     req.Pickup,
		Dropoff:    req.Dropoff,
		Status:     domain.OrderPending,
	}, nil
}

func assignmentsToDTO(in []domain.Assignment) []assignmentDTO {
	out := make([]assignmentDTO, 0, len(in))
	for _, a := range in {
		out = append(out, assignmentDTO{
			ID:               a.ID,
			CourierID:        a.CourierID,
			Status:           a.Status,
			DeliveryFee:      a.DeliveryFee,
			Tip:              a.Tip,
			RejectReason:     a.RejectReason,
			Active:           a.Active,
			OfferedAt:        a.OfferedAt,
			AcceptedAt:       a.AcceptedAt,
			RejectedAt:       a.RejectedAt,
			PickedUpAt:       a.PickedUpAt,
			OutForDeliveryAt: a.OutForDeliveryAt,
			DeliveredAt:      a.DeliveredAt,
			CancelledAt:      a.CancelledAt,
		})
	}
	return out
}

func dispatchToDTO(r domain.DispatchResult) dispatchResponse {
	return dispatchResponse{
		OrderID:         r.OrderID.String(),
		Offered:         r.Offered,
		AlreadyAssigned: r.AlreadyAssigned,
		NoCandidate:     r.NoCandidate,
		CourierID:       r.CourierID,
		AssignmentID:    r.AssignmentID,
		DeliveryFee:     r.DeliveryFee,
	}
}

func rejectToDTO(r domain.RejectResult) rejectResponse {
	return rejectResponse{
		OrderID:       r.OrderID.String(),
		Rejected:      r.Rejected,
		Reassigned:    r.Reassigned,
		NextCourierID: r.NextCourierID,
		NoCandidate:   r.NoCandidate,
	}
}
