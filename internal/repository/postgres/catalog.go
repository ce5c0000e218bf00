package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/pkg/database"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct retrieves a product by id.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT id, name, description, unit, created_at, updated_at FROM products WHERE id = $1`

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Unit, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return &p, nil
}

// GetWarehouse retrieves a warehouse by id.
func (r *CatalogRepository) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	query := `SELECT id, name, location, created_at, updated_at FROM warehouses WHERE id = $1`

	var w domain.Warehouse
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.Location, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("warehouse", id)
		}
		return nil, fmt.Errorf("get warehouse by id: %w", err)
	}
	return &w, nil
}

// GetUser retrieves a user by id.
func (r *CatalogRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, full_name, COALESCE(phone, ''), created_at, updated_at FROM users WHERE id = $1`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Phone, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}
