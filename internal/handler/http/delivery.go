package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/httputil"
	"github.com/farmlink/agrimarket/pkg/validator"
)

// DeliveryHandler handles HTTP requests for deliveries.
type DeliveryHandler struct {
	service *service.DeliveryService
	logger  *slog.Logger
}

// NewDeliveryHandler creates a new delivery HTTP handler.
func NewDeliveryHandler(svc *service.DeliveryService, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{service: svc, logger: logger}
}

// UpdateDeliveryRequest is the JSON body for delivery updates. Exactly one of
// driver_id (assignment) or status (transition) must be set.
type UpdateDeliveryRequest struct {
	DriverID string `json:"driver_id" validate:"omitempty,uuid"`
	Status   string `json:"status" validate:"omitempty"`
}

// Get handles GET /api/v1/deliveries/{id}
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	delivery, err := h.service.Get(r.Context(), actor, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, delivery, "")
}

// List handles GET /api/v1/deliveries
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	f := repository.DeliveryFilter{
		DriverID: r.URL.Query().Get("driver_id"),
		Status:   r.URL.Query().Get("status"),
	}

	deliveries, total, err := h.service.List(r.Context(), actor, f, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.NewPaginatedResponse(deliveries, total, page, perPage), "")
}

// Update handles PUT /api/v1/deliveries/{id}. A body carrying driver_id
// assigns a driver; a body carrying status advances the delivery.
func (h *DeliveryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req UpdateDeliveryRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	switch {
	case req.DriverID != "" && req.Status != "":
		httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "provide either driver_id or status, not both")
	case req.DriverID != "":
		delivery, err := h.service.AssignDriver(r.Context(), actor, id.String(), req.DriverID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusOK, delivery, "driver assigned")
	case req.Status != "":
		delivery, err := h.service.UpdateStatus(r.Context(), actor, id.String(), req.Status)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteSuccess(w, http.StatusOK, delivery, "delivery status updated")
	default:
		httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "driver_id or status is required")
	}
}
