package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/httputil"
)

// StockHandler handles read access to the stock ledger.
type StockHandler struct {
	service *service.StockService
	logger  *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(svc *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/stocks
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	f := repository.StockFilter{
		ProductID:   r.URL.Query().Get("product_id"),
		WarehouseID: r.URL.Query().Get("warehouse_id"),
	}

	stocks, total, err := h.service.ListStocks(r.Context(), actor, f, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.NewPaginatedResponse(stocks, total, page, perPage), "")
}

// Get handles GET /api/v1/stocks/{productID}/{warehouseID}
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productID"))
	if !ok {
		return
	}
	warehouseID, ok := httputil.ParseUUID(w, chi.URLParam(r, "warehouseID"))
	if !ok {
		return
	}

	stock, err := h.service.GetStock(r.Context(), actor, productID.String(), warehouseID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, stock, "")
}

// ListMovements handles GET /api/v1/stocks/movements
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	f := repository.MovementFilter{
		ProductID:   r.URL.Query().Get("product_id"),
		WarehouseID: r.URL.Query().Get("warehouse_id"),
		Reason:      r.URL.Query().Get("reason"),
	}

	movements, total, err := h.service.ListMovements(r.Context(), actor, f, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.NewPaginatedResponse(movements, total, page, perPage), "")
}
