package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/event"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	pkgkafka "github.com/farmlink/agrimarket/pkg/kafka"
)

// --- Mocks ---

type mockApproRepository struct {
	mock.Mock
}

func (m *mockApproRepository) Create(ctx context.Context, a *domain.Approvisionnement) (*domain.Approvisionnement, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Approvisionnement), args.Error(1)
}

func (m *mockApproRepository) GetByID(ctx context.Context, id string) (*domain.Approvisionnement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Approvisionnement), args.Error(1)
}

func (m *mockApproRepository) List(ctx context.Context, f repository.ApproFilter, page, perPage int) ([]domain.Approvisionnement, int, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Approvisionnement), args.Int(1), args.Error(2)
}

func (m *mockApproRepository) UpdateStatus(ctx context.Context, id, expectedFrom, status string, reviewerID *string) (*domain.Approvisionnement, error) {
	args := m.Called(ctx, id, expectedFrom, status, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Approvisionnement), args.Error(1)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, f repository.OrderFilter, page, perPage int) ([]domain.Order, int, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, expectedFrom, status string) (*domain.Order, error) {
	args := m.Called(ctx, id, expectedFrom, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockDeliveryRepository struct {
	mock.Mock
}

func (m *mockDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Delivery, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepository) List(ctx context.Context, f repository.DeliveryFilter, page, perPage int) ([]domain.Delivery, int, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Delivery), args.Int(1), args.Error(2)
}

func (m *mockDeliveryRepository) AssignDriver(ctx context.Context, id, driverID string) (*domain.Delivery, error) {
	args := m.Called(ctx, id, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *mockDeliveryRepository) UpdateStatus(ctx context.Context, id, expectedFrom, status string) (*domain.Delivery, error) {
	args := m.Called(ctx, id, expectedFrom, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) GetByProductWarehouse(ctx context.Context, productID, warehouseID string) (*domain.Stock, error) {
	args := m.Called(ctx, productID, warehouseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Stock), args.Error(1)
}

func (m *mockStockRepository) List(ctx context.Context, f repository.StockFilter, page, perPage int) ([]domain.Stock, int, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Stock), args.Int(1), args.Error(2)
}

func (m *mockStockRepository) ListMovements(ctx context.Context, f repository.MovementFilter, page, perPage int) ([]domain.StockMovement, int, error) {
	args := m.Called(ctx, f, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.StockMovement), args.Int(1), args.Error(2)
}

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalogRepository) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Warehouse), args.Error(1)
}

func (m *mockCatalogRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockRBACRepository struct {
	mock.Mock
}

func (m *mockRBACRepository) EffectiveRoles(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRBACRepository) HasPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	args := m.Called(ctx, userID, resource, action)
	return args.Bool(0), args.Error(1)
}

func (m *mockRBACRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Role), args.Error(1)
}

func (m *mockRBACRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Role), args.Error(1)
}

func (m *mockRBACRepository) ListUserGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RoleGrant), args.Error(1)
}

func (m *mockRBACRepository) UpsertGrant(ctx context.Context, userID, roleID string, grantedBy string, expiresAt *time.Time) error {
	args := m.Called(ctx, userID, roleID, grantedBy, expiresAt)
	return args.Error(0)
}

func (m *mockRBACRepository) DeactivateGrant(ctx context.Context, userID, roleID string) (bool, error) {
	args := m.Called(ctx, userID, roleID)
	return args.Bool(0), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer returns a producer with no reachable broker; publish
// failures are logged and ignored, which is the production behavior too.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func pgxTxOptsReadCommitted() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
}

func sampleTime() time.Time {
	return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
}

// newTestEngine returns a permission engine whose role lookups answer from
// the given actor -> roles table.
func newTestEngine(rolesByActor map[string][]string) *rbac.Engine {
	repo := new(mockRBACRepository)
	for actor, roles := range rolesByActor {
		repo.On("EffectiveRoles", mock.Anything, actor).Return(roles, nil)
	}
	repo.On("EffectiveRoles", mock.Anything, mock.Anything).Return([]string{}, nil).Maybe()
	return rbac.NewEngine(repo, newTestLogger())
}
