package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/repository"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

func newStockTestService(stockRepo *mockStockRepository, roles map[string][]string) *StockService {
	return NewStockService(stockRepo, newTestEngine(roles), newTestLogger())
}

func TestStockList_ByStockManager(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc := newStockTestService(stockRepo, map[string][]string{"sm-1": {domain.RoleStockManager}})
	ctx := context.Background()

	stockRepo.On("List", ctx, repository.StockFilter{WarehouseID: "wh-1"}, 1, 20).
		Return([]domain.Stock{{
			ID:          "stock-1",
			ProductID:   "prod-1",
			WarehouseID: "wh-1",
			Quantity:    decimal.NewFromInt(40),
			UnitPrice:   decimal.RequireFromString("4.50"),
		}}, 1, nil)

	stocks, total, err := svc.ListStocks(ctx, "sm-1", repository.StockFilter{WarehouseID: "wh-1"}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, stocks, 1)
	stockRepo.AssertExpectations(t)
}

func TestStockList_ByClient_Forbidden(t *testing.T) {
	svc := newStockTestService(new(mockStockRepository),
		map[string][]string{"client-1": {domain.RoleClient}})

	stocks, total, err := svc.ListStocks(context.Background(), "client-1", repository.StockFilter{}, 1, 20)

	assert.Nil(t, stocks)
	assert.Zero(t, total)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestStockGet_BySupplier_Forbidden(t *testing.T) {
	svc := newStockTestService(new(mockStockRepository),
		map[string][]string{"supplier-1": {domain.RoleSupplier}})

	stock, err := svc.GetStock(context.Background(), "supplier-1", "prod-1", "wh-1")

	assert.Nil(t, stock)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestStockListMovements_ByBusiness(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc := newStockTestService(stockRepo, map[string][]string{"biz-1": {domain.RoleBusiness}})
	ctx := context.Background()

	ref := "appro-1"
	stockRepo.On("ListMovements", ctx, repository.MovementFilter{ProductID: "prod-1"}, 1, 20).
		Return([]domain.StockMovement{{
			ID:             "mv-1",
			ProductID:      "prod-1",
			WarehouseID:    "wh-1",
			QuantityChange: decimal.NewFromInt(50),
			Reason:         domain.MovementReasonSupply,
			ReferenceID:    &ref,
		}}, 1, nil)

	movements, total, err := svc.ListMovements(ctx, "biz-1", repository.MovementFilter{ProductID: "prod-1"}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementReasonSupply, movements[0].Reason)
	stockRepo.AssertExpectations(t)
}
