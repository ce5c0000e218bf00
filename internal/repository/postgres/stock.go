package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/pkg/database"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// StockRepository implements repository.StockRepository using PostgreSQL.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetByProductWarehouse retrieves the ledger row for a product in a warehouse.
func (r *StockRepository) GetByProductWarehouse(ctx context.Context, productID, warehouseID string) (*domain.Stock, error) {
	query := `
		SELECT id, product_id, warehouse_id, quantity, unit_price, created_at, updated_at
		FROM stocks
		WHERE product_id = $1 AND warehouse_id = $2`

	var s domain.Stock
	err := r.pool.QueryRow(ctx, query, productID, warehouseID).Scan(
		&s.ID,
		&s.ProductID,
		&s.WarehouseID,
		&s.Quantity,
		&s.UnitPrice,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get stock by product and warehouse: %w", err)
	}

	return &s, nil
}

// List returns ledger rows matching the filter, newest first.
func (r *StockRepository) List(ctx context.Context, f repository.StockFilter, page, perPage int) ([]domain.Stock, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	where, args := buildStockWhere(f)
	args = append(args, perPage, offset)
	n := len(args)

	query := fmt.Sprintf(`
		SELECT id, product_id, warehouse_id, quantity, unit_price, created_at, updated_at,
		       count(*) OVER() AS total_count
		FROM stocks
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`, where, n-1, n)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var (
		stocks     []domain.Stock
		totalCount int
	)
	for rows.Next() {
		var s domain.Stock
		if err := rows.Scan(
			&s.ID,
			&s.ProductID,
			&s.WarehouseID,
			&s.Quantity,
			&s.UnitPrice,
			&s.CreatedAt,
			&s.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan stock row: %w", err)
		}
		stocks = append(stocks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock rows: %w", err)
	}

	if stocks == nil {
		stocks = []domain.Stock{}
	}
	return stocks, totalCount, nil
}

// ListMovements returns recorded ledger changes matching the filter, newest first.
func (r *StockRepository) ListMovements(ctx context.Context, f repository.MovementFilter, page, perPage int) ([]domain.StockMovement, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	var (
		conds []string
		args  []any
	)
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conds = append(conds, "product_id = $"+strconv.Itoa(len(args)))
	}
	if f.WarehouseID != "" {
		args = append(args, f.WarehouseID)
		conds = append(conds, "warehouse_id = $"+strconv.Itoa(len(args)))
	}
	if f.Reason != "" {
		args = append(args, f.Reason)
		conds = append(conds, "reason = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, perPage, offset)
	n := len(args)

	query := fmt.Sprintf(`
		SELECT id, product_id, warehouse_id, quantity_change, reason, reference_id, created_at,
		       count(*) OVER() AS total_count
		FROM stock_movements
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, n-1, n)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var (
		movements  []domain.StockMovement
		totalCount int
	)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&m.WarehouseID,
			&m.QuantityChange,
			&m.Reason,
			&m.ReferenceID,
			&m.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan stock movement row: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock movement rows: %w", err)
	}

	if movements == nil {
		movements = []domain.StockMovement{}
	}
	return movements, totalCount, nil
}

func buildStockWhere(f repository.StockFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ProductID != "" {
		args = append(args, f.ProductID)
		conds = append(conds, "product_id = $"+strconv.Itoa(len(args)))
	}
	if f.WarehouseID != "" {
		args = append(args, f.WarehouseID)
		conds = append(conds, "warehouse_id = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
