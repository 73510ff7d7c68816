package handlers

import (
	"net/http"
	"strings"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// CourierHandler serves HTTP endpoints for courier resources.
type CourierHandler struct {
	couriers courierUsecase
	dispatch dispatchUsecase
	logger   logx.Logger
}

// NewCourierHandler wires courier and dispatch usecases into HTTP handlers.
func NewCourierHandler(logger logx.Logger, couriers courierUsecase, dispatch dispatchUsecase) *CourierHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &CourierHandler{couriers: couriers, dispatch: dispatch, logger: logger}
}

// GetByID handles GET /couriers/{id}.
func (h *CourierHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := h.couriers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, courierToDTO(c))
}

// List handles GET /couriers. With eligible=true only couriers that can take an offer right now are listed.
func (h *CourierHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	eligible, err := queryBool(r, "eligible")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	var list []domain.Courier
	if eligible {
		list, err = h.couriers.ListEligible(r.Context(), domain.CandidateFilter{})
		list = paginate(list, limit, offset)
	} else {
		list, err = h.couriers.List(r.Context(), limit, offset)
	}
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, couriersToDTO(list))
}

// Create handles POST /couriers.
func (h *CourierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCourierRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	c, err := courierFromCreate(req)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	id, err := h.couriers.Create(r.Context(), c)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	c.ID = id
	writeJSON(h.logger, w, r, http.StatusCreated, courierToDTO(c))
}

// UpdateStatus handles PUT /couriers/{id}/status.
func (h *CourierHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	status := domain.CourierStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	c, err := h.couriers.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, courierToDTO(c))
}

// UpdateLocation handles PUT /couriers/{id}/location.
func (h *CourierHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateLocationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "lat and lon are required")
		return
	}
	c, err := h.couriers.UpdateLocation(r.Context(), id, *req.Lat, *req.Lon)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, courierToDTO(c))
}

// Availability handles GET /couriers/{id}/availability.
func (h *CourierHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	av, err := h.couriers.CheckAvailability(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, av)
}

// ActiveOrders handles GET /couriers/{id}/orders.
func (h *CourierHandler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	orders, err := h.dispatch.GetActiveOrdersForCourier(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, ordersToDTO(orders))
}
