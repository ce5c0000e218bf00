package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/health"
	"github.com/farmlink/agrimarket/pkg/middleware"
)

// RouterConfig bundles the dependencies of the HTTP router.
type RouterConfig struct {
	StockService    *service.StockService
	ApproService    *service.ApprovisionnementService
	OrderService    *service.OrderService
	DeliveryService *service.DeliveryService
	RoleService     *service.RoleService

	HealthHandler *health.Handler
	TokenValidate middleware.TokenValidator

	// RedisClient enables per-client rate limiting when set.
	RedisClient     *redis.Client
	RateLimit       int
	RateLimitWindow time.Duration

	CORS middleware.CORSConfig

	// PprofAllowedCIDRs exposes /debug/pprof to the listed networks when set.
	PprofAllowedCIDRs []string

	Logger *slog.Logger
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing("agrimarket"))
	r.Use(middleware.PrometheusMetrics("agrimarket"))

	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)
	}

	stockHandler := NewStockHandler(cfg.StockService, cfg.Logger)
	approHandler := NewApprovisionnementHandler(cfg.ApproService, cfg.Logger)
	orderHandler := NewOrderHandler(cfg.OrderService, cfg.Logger)
	deliveryHandler := NewDeliveryHandler(cfg.DeliveryService, cfg.Logger)
	roleHandler := NewRoleHandler(cfg.RoleService, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(cfg.TokenValidate))
		if cfg.RedisClient != nil && cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(cfg.RedisClient, cfg.RateLimit, cfg.RateLimitWindow, cfg.Logger))
		}

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", stockHandler.List)
			r.Get("/movements", stockHandler.ListMovements)
			r.Get("/{productID}/{warehouseID}", stockHandler.Get)
		})

		r.Route("/approvisionnements", func(r chi.Router) {
			r.Post("/", approHandler.Create)
			r.Get("/", approHandler.List)
			r.Get("/{id}", approHandler.Get)
			r.Put("/{id}", approHandler.UpdateStatus)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Put("/{id}", orderHandler.UpdateStatus)
			r.Delete("/{id}", orderHandler.Delete)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
			r.Put("/{id}", deliveryHandler.Update)
		})

		// The role catalogue changes rarely; let clients cache it briefly.
		r.With(middleware.CacheControl(60)).Get("/roles", roleHandler.ListRoles)
		r.Route("/users/{id}/roles", func(r chi.Router) {
			r.Get("/", roleHandler.GetUserRoles)
			r.Post("/", roleHandler.GrantRole)
			r.Delete("/", roleHandler.RevokeRole)
		})
	})

	return r
}
