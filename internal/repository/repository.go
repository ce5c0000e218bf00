package repository

import (
	"context"
	"time"

	"github.com/farmlink/agrimarket/internal/domain"
)

// StockFilter narrows stock ledger listings.
type StockFilter struct {
	ProductID   string
	WarehouseID string
}

// MovementFilter narrows stock movement listings.
type MovementFilter struct {
	ProductID   string
	WarehouseID string
	Reason      string
}

// StockRepository defines read access to the stock ledger. Ledger writes
// (increments and decrements) only happen inside workflow transactions owned
// by the service layer.
type StockRepository interface {
	// GetByProductWarehouse retrieves the ledger row for a product in a warehouse.
	GetByProductWarehouse(ctx context.Context, productID, warehouseID string) (*domain.Stock, error)

	// List returns ledger rows matching the filter, newest first.
	List(ctx context.Context, f StockFilter, page, perPage int) ([]domain.Stock, int, error)

	// ListMovements returns recorded ledger changes matching the filter, newest first.
	ListMovements(ctx context.Context, f MovementFilter, page, perPage int) ([]domain.StockMovement, int, error)
}

// ApproFilter narrows approvisionnement listings.
type ApproFilter struct {
	SupplierID string
	Statuses   []string
}

// ApprovisionnementRepository defines persistence for supply requests.
type ApprovisionnementRepository interface {
	// Create inserts a new supply request in PENDING status.
	Create(ctx context.Context, a *domain.Approvisionnement) (*domain.Approvisionnement, error)

	// GetByID retrieves a supply request by id.
	GetByID(ctx context.Context, id string) (*domain.Approvisionnement, error)

	// List returns supply requests matching the filter, newest first.
	List(ctx context.Context, f ApproFilter, page, perPage int) ([]domain.Approvisionnement, int, error)

	// UpdateStatus moves a request from expectedFrom to status, recording the
	// reviewer when given. It returns the updated row, or ErrConflict when the
	// row was concurrently moved out of expectedFrom.
	UpdateStatus(ctx context.Context, id, expectedFrom, status string, reviewerID *string) (*domain.Approvisionnement, error)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ClientID string
	Status   string
}

// OrderRepository defines persistence for orders. Order creation and the
// transition into SHIPPED are transactional and owned by the service layer.
type OrderRepository interface {
	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the filter, newest first. Items are not loaded.
	List(ctx context.Context, f OrderFilter, page, perPage int) ([]domain.Order, int, error)

	// UpdateStatus moves an order from expectedFrom to status. It returns the
	// updated row, or ErrConflict when the row was concurrently moved.
	UpdateStatus(ctx context.Context, id, expectedFrom, status string) (*domain.Order, error)

	// Delete removes an order and its items.
	Delete(ctx context.Context, id string) error
}

// DeliveryFilter narrows delivery listings.
type DeliveryFilter struct {
	DriverID string
	Status   string
}

// DeliveryRepository defines persistence for deliveries.
type DeliveryRepository interface {
	// GetByID retrieves a delivery by id.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)

	// GetByOrderID retrieves the delivery attached to an order.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error)

	// List returns deliveries matching the filter, newest first.
	List(ctx context.Context, f DeliveryFilter, page, perPage int) ([]domain.Delivery, int, error)

	// AssignDriver sets or replaces the driver on a delivery.
	AssignDriver(ctx context.Context, id, driverID string) (*domain.Delivery, error)

	// UpdateStatus moves a delivery from expectedFrom to status. It returns the
	// updated row, or ErrConflict when the row was concurrently moved.
	UpdateStatus(ctx context.Context, id, expectedFrom, status string) (*domain.Delivery, error)
}

// RBACRepository defines persistence for roles, permissions and grants.
type RBACRepository interface {
	// EffectiveRoles returns the names of roles the user holds through active,
	// unexpired grants on active role definitions. Unknown users yield an
	// empty slice, not an error.
	EffectiveRoles(ctx context.Context, userID string) ([]string, error)

	// HasPermission reports whether any of the user's effective roles grants
	// the (resource, action) pair.
	HasPermission(ctx context.Context, userID, resource, action string) (bool, error)

	// GetRoleByName retrieves a role definition by its unique name.
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)

	// ListRoles returns every role definition with its permissions.
	ListRoles(ctx context.Context) ([]domain.Role, error)

	// ListUserGrants returns the user's grants, active ones first.
	ListUserGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error)

	// UpsertGrant creates or reactivates a grant of roleID to userID.
	UpsertGrant(ctx context.Context, userID, roleID string, grantedBy string, expiresAt *time.Time) error

	// DeactivateGrant soft-deactivates the user's grant of roleID. It returns
	// false when no active grant existed.
	DeactivateGrant(ctx context.Context, userID, roleID string) (bool, error)
}

// CatalogRepository defines read access to products, warehouses and users for
// reference validation.
type CatalogRepository interface {
	// GetProduct retrieves a product by id.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetWarehouse retrieves a warehouse by id.
	GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error)

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
