package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// OrderHandler serves HTTP endpoints for order dispatch and the courier lifecycle.
type OrderHandler struct {
	usecase dispatchUsecase
	logger  logx.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(logger logx.Logger, uc dispatchUsecase) *OrderHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &OrderHandler{usecase: uc, logger: logger}
}

// Create handles POST /orders.
// @Summary Регистрирует заказ и сразу пытается назначить курьера
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	o, err := orderFromCreate(req)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	created, err := h.usecase.RegisterOrder(r.Context(), o)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	if !created {
		writeError(h.logger, w, r, http.StatusConflict, "order already exists")
		return
	}
	// отсутствие курьера не ошибка: заказ остаётся pending до следующей попытки
	if _, err := h.usecase.Dispatch(r.Context(), o.ID); err != nil {
		h.logger.Warn("dispatch after create failed",
			logx.String("req_id", reqID(r.Context())),
			logx.String("order_id", o.ID.String()),
			logx.Err(err),
		)
	}
	writeJSON(h.logger, w, r, http.StatusCreated, createOrderResponse{ID: o.ID.String(), Created: true})
}

// UpdateStatus handles PUT /orders/{id}/status.
// @Summary Меняет статус заказа (vendor/admin)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req orderStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = domain.ActorVendor
	}
	h.respondResult(w, r, id, func(ctx context.Context) (bool, error) {
		return h.usecase.UpdateOrderStatus(ctx, id, status, actor, req.Note)
	})
}

// Assignments handles GET /orders/{id}/assignments.
func (h *OrderHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	list, err := h.usecase.GetAssignmentHistory(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentsToDTO(list))
}

// Dispatch handles POST /orders/{id}/dispatch.
// @Summary Предлагает заказ ближайшему подходящему курьеру
func (h *OrderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	res, err := h.usecase.Dispatch(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	if res.NotDispatchable {
		writeError(h.logger, w, r, http.StatusConflict, "order is not dispatchable")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, dispatchToDTO(res))
}

// Assign handles POST /orders/{id}/assign.
// @Summary Ручное назначение заказа администратором
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, h.usecase.AssignOrderToCourier)
}

// Accept handles POST /orders/{id}/accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, h.usecase.AcceptOrder)
}

// Reject handles POST /orders/{id}/reject.
// @Summary Курьер отклоняет предложение; заказ уходит следующему кандидату
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req courierActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	res, err := h.usecase.RejectOrder(r.Context(), id, req.CourierID, req.Reason)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	if !res.Rejected {
		writeError(h.logger, w, r, http.StatusConflict, "order is not offered to this courier")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, rejectToDTO(res))
}

// PickUp handles POST /orders/{id}/pickup.
func (h *OrderHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, h.usecase.PickUpOrder)
}

// StartDelivery handles POST /orders/{id}/start-delivery.
func (h *OrderHandler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, h.usecase.StartDelivery)
}

// Deliver handles POST /orders/{id}/deliver.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.courierAction(w, r, h.usecase.DeliverOrder)
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

type courierActionFunc func(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error)

func (h *OrderHandler) courierAction(w http.ResponseWriter, r *http.Request, fn courierActionFunc) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req courierActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.CourierID <= 0 {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}
	h.respondResult(w, r, id, func(ctx context.Context) (bool, error) {
		return fn(ctx, id, req.CourierID)
	})
}

// respondResult maps a (false, nil) outcome to 409: the precondition no longer holds.
func (h *OrderHandler) respondResult(
	w http.ResponseWriter, r *http.Request, id uuid.UUID, fn func(ctx context.Context) (bool, error),
) {
	ok, err := fn(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	if !ok {
		writeError(h.logger, w, r, http.StatusConflict, "operation not applicable in current state")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, resultResponse{OrderID: id.String(), OK: true})
}
