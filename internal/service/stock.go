package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// StockService exposes read access to the stock ledger. The ledger is only
// written through the approvisionnement and order workflows.
type StockService struct {
	stockRepo repository.StockRepository
	engine    *rbac.Engine
	logger    *slog.Logger
}

// NewStockService creates a new stock service.
func NewStockService(stockRepo repository.StockRepository, engine *rbac.Engine, logger *slog.Logger) *StockService {
	return &StockService{stockRepo: stockRepo, engine: engine, logger: logger}
}

// stockReaders are the roles allowed to inspect the ledger.
var stockReaders = []string{domain.RoleAdmin, domain.RoleBusiness, domain.RoleStockManager}

// ListStocks returns ledger rows visible to the actor.
func (s *StockService) ListStocks(ctx context.Context, actorID string, f repository.StockFilter, page, perPage int) ([]domain.Stock, int, error) {
	if err := s.engine.RequireRole(ctx, actorID, stockReaders...); err != nil {
		return nil, 0, err
	}

	stocks, total, err := s.stockRepo.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list stocks: %w", err)
	}
	return stocks, total, nil
}

// GetStock returns the ledger row for one product in one warehouse.
func (s *StockService) GetStock(ctx context.Context, actorID, productID, warehouseID string) (*domain.Stock, error) {
	if err := s.engine.RequireRole(ctx, actorID, stockReaders...); err != nil {
		return nil, err
	}

	stock, err := s.stockRepo.GetByProductWarehouse(ctx, productID, warehouseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("stock", productID)
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return stock, nil
}

// ListMovements returns the ledger history visible to the actor.
func (s *StockService) ListMovements(ctx context.Context, actorID string, f repository.MovementFilter, page, perPage int) ([]domain.StockMovement, int, error) {
	if err := s.engine.RequireRole(ctx, actorID, stockReaders...); err != nil {
		return nil, 0, err
	}

	movements, total, err := s.stockRepo.ListMovements(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, total, nil
}
