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

const approColumns = `id, product_id, warehouse_id, supplier_id, quantity, unit_price,
		delivery_date, status, business_developer_id, stock_manager_id, created_at, updated_at`

// ApprovisionnementRepository implements repository.ApprovisionnementRepository
// using PostgreSQL.
type ApprovisionnementRepository struct {
	pool database.DBTX
}

// NewApprovisionnementRepository creates a new PostgreSQL-backed repository.
func NewApprovisionnementRepository(pool database.DBTX) *ApprovisionnementRepository {
	return &ApprovisionnementRepository{pool: pool}
}

func scanAppro(row pgx.Row) (*domain.Approvisionnement, error) {
	var a domain.Approvisionnement
	err := row.Scan(
		&a.ID,
		&a.ProductID,
		&a.WarehouseID,
		&a.SupplierID,
		&a.Quantity,
		&a.UnitPrice,
		&a.DeliveryDate,
		&a.Status,
		&a.BusinessDeveloperID,
		&a.StockManagerID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new supply request in PENDING status.
func (r *ApprovisionnementRepository) Create(ctx context.Context, a *domain.Approvisionnement) (*domain.Approvisionnement, error) {
	query := `
		INSERT INTO approvisionnements (id, product_id, warehouse_id, supplier_id, quantity, unit_price, delivery_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + approColumns

	result, err := scanAppro(r.pool.QueryRow(ctx, query,
		a.ID, a.ProductID, a.WarehouseID, a.SupplierID, a.Quantity, a.UnitPrice, a.DeliveryDate, a.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("create approvisionnement: %w", err)
	}
	return result, nil
}

// GetByID retrieves a supply request by id.
func (r *ApprovisionnementRepository) GetByID(ctx context.Context, id string) (*domain.Approvisionnement, error) {
	query := `SELECT ` + approColumns + ` FROM approvisionnements WHERE id = $1`

	a, err := scanAppro(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get approvisionnement by id: %w", err)
	}
	return a, nil
}

// List returns supply requests matching the filter, newest first.
func (r *ApprovisionnementRepository) List(ctx context.Context, f repository.ApproFilter, page, perPage int) ([]domain.Approvisionnement, int, error) {
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
	if f.SupplierID != "" {
		args = append(args, f.SupplierID)
		conds = append(conds, "supplier_id = $"+strconv.Itoa(len(args)))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		conds = append(conds, "status = ANY($"+strconv.Itoa(len(args))+")")
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, perPage, offset)
	n := len(args)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM approvisionnements
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, approColumns, where, n-1, n)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list approvisionnements: %w", err)
	}
	defer rows.Close()

	var (
		items      []domain.Approvisionnement
		totalCount int
	)
	for rows.Next() {
		var a domain.Approvisionnement
		if err := rows.Scan(
			&a.ID,
			&a.ProductID,
			&a.WarehouseID,
			&a.SupplierID,
			&a.Quantity,
			&a.UnitPrice,
			&a.DeliveryDate,
			&a.Status,
			&a.BusinessDeveloperID,
			&a.StockManagerID,
			&a.CreatedAt,
			&a.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan approvisionnement row: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate approvisionnement rows: %w", err)
	}

	if items == nil {
		items = []domain.Approvisionnement{}
	}
	return items, totalCount, nil
}

// UpdateStatus moves a request from expectedFrom to status. The guard on the
// previous status makes concurrent reviewers lose cleanly instead of both
// winning. The reviewer id lands in business_developer_id for APPROVED and
// in stock_manager_id for RECEIVED; no other transition records a reviewer.
func (r *ApprovisionnementRepository) UpdateStatus(ctx context.Context, id, expectedFrom, status string, reviewerID *string) (*domain.Approvisionnement, error) {
	query := `
		UPDATE approvisionnements
		SET status = $3,
		    business_developer_id = CASE WHEN $3 = 'APPROVED' THEN $4 ELSE business_developer_id END,
		    stock_manager_id = CASE WHEN $3 = 'RECEIVED' THEN $4 ELSE stock_manager_id END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + approColumns

	a, err := scanAppro(r.pool.QueryRow(ctx, query, id, expectedFrom, status, reviewerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("update approvisionnement status: %w", err)
	}
	return a, nil
}
