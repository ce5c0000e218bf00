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

const deliveryColumns = `id, order_id, driver_id, status, created_at, updated_at`

// DeliveryRepository implements repository.DeliveryRepository using PostgreSQL.
type DeliveryRepository struct {
	pool database.DBTX
}

// NewDeliveryRepository creates a new PostgreSQL-backed delivery repository.
func NewDeliveryRepository(pool database.DBTX) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID retrieves a delivery by id.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get delivery by id: %w", err)
	}
	return d, nil
}

// GetByOrderID retrieves the delivery attached to an order.
func (r *DeliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1`

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get delivery by order id: %w", err)
	}
	return d, nil
}

// List returns deliveries matching the filter, newest first.
func (r *DeliveryRepository) List(ctx context.Context, f repository.DeliveryFilter, page, perPage int) ([]domain.Delivery, int, error) {
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
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		conds = append(conds, "driver_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, perPage, offset)
	n := len(args)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM deliveries
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, deliveryColumns, where, n-1, n)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var (
		deliveries []domain.Delivery
		totalCount int
	)
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status, &d.CreatedAt, &d.UpdatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan delivery row: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate delivery rows: %w", err)
	}

	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	return deliveries, totalCount, nil
}

// AssignDriver sets or replaces the driver on a delivery.
func (r *DeliveryRepository) AssignDriver(ctx context.Context, id, driverID string) (*domain.Delivery, error) {
	query := `
		UPDATE deliveries
		SET driver_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + deliveryColumns

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("assign delivery driver: %w", err)
	}
	return d, nil
}

// UpdateStatus moves a delivery from expectedFrom to status.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id, expectedFrom, status string) (*domain.Delivery, error) {
	query := `
		UPDATE deliveries
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + deliveryColumns

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id, expectedFrom, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("update delivery status: %w", err)
	}
	return d, nil
}
