package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/httputil"
	"github.com/farmlink/agrimarket/pkg/validator"
)

// ApprovisionnementHandler handles HTTP requests for supply requests.
type ApprovisionnementHandler struct {
	service *service.ApprovisionnementService
	logger  *slog.Logger
}

// NewApprovisionnementHandler creates a new approvisionnement HTTP handler.
func NewApprovisionnementHandler(svc *service.ApprovisionnementService, logger *slog.Logger) *ApprovisionnementHandler {
	return &ApprovisionnementHandler{service: svc, logger: logger}
}

// CreateApprovisionnementRequest is the JSON body for a new supply request.
type CreateApprovisionnementRequest struct {
	ProductID    string          `json:"product_id" validate:"required,uuid"`
	WarehouseID  string          `json:"warehouse_id" validate:"required,uuid"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DeliveryDate string          `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateStatusRequest is the JSON body for status transitions.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create handles POST /api/v1/approvisionnements
func (h *ApprovisionnementHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateApprovisionnementRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.CreateApproInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	if req.DeliveryDate != "" {
		d, err := time.Parse("2006-01-02", req.DeliveryDate)
		if err != nil {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "delivery_date must be YYYY-MM-DD")
			return
		}
		input.DeliveryDate = &d
	}

	appro, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, appro, "approvisionnement created")
}

// Get handles GET /api/v1/approvisionnements/{id}
func (h *ApprovisionnementHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	appro, err := h.service.Get(r.Context(), actor, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, appro, "")
}

// List handles GET /api/v1/approvisionnements
func (h *ApprovisionnementHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	var f repository.ApproFilter
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []string{v}
	}
	if v := r.URL.Query().Get("supplier_id"); v != "" {
		f.SupplierID = v
	}

	items, total, err := h.service.List(r.Context(), actor, f, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.NewPaginatedResponse(items, total, page, perPage), "")
}

// UpdateStatus handles PUT /api/v1/approvisionnements/{id}
func (h *ApprovisionnementHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	appro, err := h.service.UpdateStatus(r.Context(), actor, id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, appro, "approvisionnement status updated")
}
