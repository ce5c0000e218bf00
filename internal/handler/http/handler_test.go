package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/event"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/health"
	"github.com/farmlink/agrimarket/pkg/httputil"
	pkgkafka "github.com/farmlink/agrimarket/pkg/kafka"
	"github.com/farmlink/agrimarket/pkg/middleware"
)

// ============================================================================
// Mock Repositories
// ============================================================================

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
	return args.Get(0).([]domain.Stock), args.Int(1), args.Error(2)
}

func (m *mockStockRepository) ListMovements(ctx context.Context, f repository.MovementFilter, page, perPage int) ([]domain.StockMovement, int, error) {
	args := m.Called(ctx, f, page, perPage)
	return args.Get(0).([]domain.StockMovement), args.Int(1), args.Error(2)
}

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
	return args.Get(0).([]domain.Role), args.Error(1)
}

func (m *mockRBACRepository) ListUserGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	args := m.Called(ctx, userID)
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

// ============================================================================
// Test Helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

// testRepos bundles every mock repository behind the full router.
type testRepos struct {
	stock    *mockStockRepository
	appro    *mockApproRepository
	order    *mockOrderRepository
	delivery *mockDeliveryRepository
	catalog  *mockCatalogRepository
	rbac     *mockRBACRepository
}

func newTestRepos() *testRepos {
	return &testRepos{
		stock:    new(mockStockRepository),
		appro:    new(mockApproRepository),
		order:    new(mockOrderRepository),
		delivery: new(mockDeliveryRepository),
		catalog:  new(mockCatalogRepository),
		rbac:     new(mockRBACRepository),
	}
}

// grantRoles stubs the role lookups the services make for each actor.
func (r *testRepos) grantRoles(rolesByActor map[string][]string) {
	for actor, roles := range rolesByActor {
		r.rbac.On("EffectiveRoles", mock.Anything, actor).Return(roles, nil)
	}
	r.rbac.On("EffectiveRoles", mock.Anything, mock.Anything).Return([]string{}, nil).Maybe()
}

// newTestRouter builds the production router over mock repositories. The
// token validator treats the bearer token itself as the user id.
func newTestRouter(repos *testRepos) http.Handler {
	logger := testLogger()
	producer := testEventProducer()
	engine := rbac.NewEngine(repos.rbac, logger)

	// pool is nil -- transactional paths (order creation, supply receipt,
	// shipping) are covered by the service-level pgxmock tests.
	return NewRouter(RouterConfig{
		StockService:    service.NewStockService(repos.stock, engine, logger),
		ApproService:    service.NewApprovisionnementService(repos.appro, repos.catalog, nil, engine, producer, logger),
		OrderService:    service.NewOrderService(repos.order, repos.delivery, repos.catalog, nil, engine, producer, logger),
		DeliveryService: service.NewDeliveryService(repos.delivery, repos.order, repos.catalog, engine, producer, logger),
		RoleService:     service.NewRoleService(engine, repos.catalog, logger),
		HealthHandler:   health.NewHandler(),
		TokenValidate: func(token string) (*middleware.Claims, error) {
			return &middleware.Claims{UserID: token, Email: token + "@test.local"}, nil
		},
		CORS:   middleware.DefaultCORSConfig(),
		Logger: logger,
	})
}

// doRequest performs an authenticated JSON request against the router.
func doRequest(router http.Handler, method, target, asUser string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		req.Header.Set("Authorization", "Bearer "+asUser)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

const (
	validProductID   = "550e8400-e29b-41d4-a716-446655440001"
	validWarehouseID = "550e8400-e29b-41d4-a716-446655440002"
	validApproID     = "550e8400-e29b-41d4-a716-446655440003"
	validOrderID     = "550e8400-e29b-41d4-a716-446655440004"
	validDeliveryID  = "550e8400-e29b-41d4-a716-446655440005"
	validUserID      = "550e8400-e29b-41d4-a716-446655440006"
)
