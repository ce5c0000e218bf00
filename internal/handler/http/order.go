package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/httputil"
	"github.com/farmlink/agrimarket/pkg/validator"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// OrderLineRequest is a single product line in an order request.
type OrderLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateOrderRequest is the JSON body for a new order.
type CreateOrderRequest struct {
	ClientID        string             `json:"client_id" validate:"omitempty,uuid"`
	WarehouseID     string             `json:"warehouse_id" validate:"required,uuid"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	Lines           []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.CreateOrderInput{
		ClientID:        req.ClientID,
		WarehouseID:     req.WarehouseID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		Lines:           make([]service.OrderLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, service.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, order, "order created")
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), actor, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, order, "")
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	f := repository.OrderFilter{
		ClientID: r.URL.Query().Get("client_id"),
		Status:   r.URL.Query().Get("status"),
	}

	orders, total, err := h.service.List(r.Context(), actor, f, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, page, perPage), "")
}

// UpdateStatus handles PUT /api/v1/orders/{id}
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), actor, id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, order, "order status updated")
}

// Delete handles DELETE /api/v1/orders/{id}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
