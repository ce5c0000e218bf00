package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/event"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	"github.com/farmlink/agrimarket/pkg/database"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// CreateApproInput carries the fields for a new supply request.
type CreateApproInput struct {
	ProductID    string
	WarehouseID  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	DeliveryDate *time.Time
}

// ApprovisionnementService drives the supplier workflow. Every status change
// is permission-gated, and the APPROVED -> RECEIVED transition is the single
// write path into the stock ledger on the supply side.
type ApprovisionnementService struct {
	approRepo   repository.ApprovisionnementRepository
	catalogRepo repository.CatalogRepository
	pool        database.DBTX
	engine      *rbac.Engine
	producer    *event.Producer
	logger      *slog.Logger
}

// NewApprovisionnementService creates a new approvisionnement service.
func NewApprovisionnementService(
	approRepo repository.ApprovisionnementRepository,
	catalogRepo repository.CatalogRepository,
	pool database.DBTX,
	engine *rbac.Engine,
	producer *event.Producer,
	logger *slog.Logger,
) *ApprovisionnementService {
	return &ApprovisionnementService{
		approRepo:   approRepo,
		catalogRepo: catalogRepo,
		pool:        pool,
		engine:      engine,
		producer:    producer,
		logger:      logger,
	}
}

// Create registers a new supply request in PENDING status. The actor becomes
// the request's supplier.
func (s *ApprovisionnementService) Create(ctx context.Context, actorID string, input CreateApproInput) (*domain.Approvisionnement, error) {
	if err := s.engine.RequireRole(ctx, actorID, domain.RoleSupplier, domain.RoleAdmin); err != nil {
		return nil, err
	}

	if !input.Quantity.IsPositive() {
		return nil, apperrors.InvalidInput("quantity must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return nil, apperrors.InvalidInput("unit price cannot be negative")
	}

	if _, err := s.catalogRepo.GetProduct(ctx, input.ProductID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", input.ProductID)
		}
		return nil, fmt.Errorf("validate product: %w", err)
	}
	if _, err := s.catalogRepo.GetWarehouse(ctx, input.WarehouseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("warehouse", input.WarehouseID)
		}
		return nil, fmt.Errorf("validate warehouse: %w", err)
	}

	appro := &domain.Approvisionnement{
		ID:           uuid.New().String(),
		ProductID:    input.ProductID,
		WarehouseID:  input.WarehouseID,
		SupplierID:   actorID,
		Quantity:     input.Quantity,
		UnitPrice:    input.UnitPrice,
		DeliveryDate: input.DeliveryDate,
		Status:       domain.ApproStatusPending,
	}

	created, err := s.approRepo.Create(ctx, appro)
	if err != nil {
		return nil, fmt.Errorf("create approvisionnement: %w", err)
	}

	s.logger.InfoContext(ctx, "approvisionnement created",
		slog.String("approvisionnement_id", created.ID),
		slog.String("supplier_id", actorID),
		slog.String("product_id", created.ProductID),
	)
	return created, nil
}

// Get returns one supply request. Suppliers only see their own requests;
// reviewers and admins see everything.
func (s *ApprovisionnementService) Get(ctx context.Context, actorID, id string) (*domain.Approvisionnement, error) {
	appro, err := s.approRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("approvisionnement", id)
		}
		return nil, fmt.Errorf("get approvisionnement: %w", err)
	}

	if appro.SupplierID == actorID {
		return appro, nil
	}
	if err := s.engine.RequireRole(ctx, actorID, domain.RoleAdmin, domain.RoleBusiness, domain.RoleStockManager); err != nil {
		return nil, err
	}
	return appro, nil
}

// List returns supply requests visible to the actor. Visibility narrows with
// the role: admins see everything, business developers see what they can
// still act on (PENDING and APPROVED), stock managers see what awaits
// reception (APPROVED), and suppliers see their own requests.
func (s *ApprovisionnementService) List(ctx context.Context, actorID string, f repository.ApproFilter, page, perPage int) ([]domain.Approvisionnement, int, error) {
	roles, err := s.engine.EffectiveRoles(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case slices.Contains(roles, domain.RoleAdmin):
	case slices.Contains(roles, domain.RoleBusiness):
		f.Statuses = restrictStatuses(f.Statuses, domain.ApproStatusPending, domain.ApproStatusApproved)
	case slices.Contains(roles, domain.RoleStockManager):
		f.Statuses = restrictStatuses(f.Statuses, domain.ApproStatusApproved)
	case slices.Contains(roles, domain.RoleSupplier):
		f.SupplierID = actorID
	default:
		return nil, 0, apperrors.Forbidden("insufficient role for this operation")
	}
	if f.Statuses != nil && len(f.Statuses) == 0 {
		// The requested statuses fall entirely outside the actor's view.
		return []domain.Approvisionnement{}, 0, nil
	}

	items, total, err := s.approRepo.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list approvisionnements: %w", err)
	}
	return items, total, nil
}

// restrictStatuses intersects a requested status filter with the statuses the
// actor is allowed to see. A nil request means "all allowed".
func restrictStatuses(requested []string, allowed ...string) []string {
	if requested == nil {
		return allowed
	}
	kept := make([]string, 0, len(requested))
	for _, st := range requested {
		if slices.Contains(allowed, st) {
			kept = append(kept, st)
		}
	}
	return kept
}

// UpdateStatus moves a supply request through its workflow. Who may trigger
// which transition:
//
//	APPROVED, REJECTED  business developer or admin
//	CANCELLED           the request's own supplier, or admin
//	RECEIVED            stock manager or admin; credits the stock ledger
func (s *ApprovisionnementService) UpdateStatus(ctx context.Context, actorID, id, target string) (*domain.Approvisionnement, error) {
	if !domain.IsValidApproStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status: %s", target))
	}

	appro, err := s.approRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("approvisionnement", id)
		}
		return nil, fmt.Errorf("get approvisionnement: %w", err)
	}

	if !appro.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("approvisionnement", appro.Status, target)
	}

	switch target {
	case domain.ApproStatusApproved, domain.ApproStatusRejected:
		if err := s.engine.RequireRole(ctx, actorID, domain.RoleBusiness, domain.RoleAdmin); err != nil {
			return nil, err
		}
	case domain.ApproStatusCancelled:
		if appro.SupplierID != actorID {
			if err := s.engine.RequireRole(ctx, actorID, domain.RoleAdmin); err != nil {
				return nil, err
			}
		}
	case domain.ApproStatusReceived:
		if err := s.engine.RequireRole(ctx, actorID, domain.RoleStockManager, domain.RoleAdmin); err != nil {
			return nil, err
		}
		return s.receive(ctx, actorID, appro)
	}

	// Only approval credits a reviewer; rejections and cancellations leave
	// business_developer_id untouched.
	var reviewer *string
	if target == domain.ApproStatusApproved {
		reviewer = &actorID
	}

	updated, err := s.approRepo.UpdateStatus(ctx, id, appro.Status, target, reviewer)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.RetryableConflict(fmt.Errorf("approvisionnement %s concurrently modified", id))
		}
		return nil, fmt.Errorf("update approvisionnement status: %w", err)
	}

	s.logger.InfoContext(ctx, "approvisionnement status updated",
		slog.String("approvisionnement_id", id),
		slog.String("from", appro.Status),
		slog.String("to", target),
		slog.String("actor_id", actorID),
	)
	return updated, nil
}

// receive performs the APPROVED -> RECEIVED transition atomically: the stock
// row is credited, the movement is journaled and the request is closed in one
// transaction, so the ledger can never drift from the workflow.
func (s *ApprovisionnementService) receive(ctx context.Context, actorID string, appro *domain.Approvisionnement) (*domain.Approvisionnement, error) {
	err := database.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		// Re-check under lock; the unlocked read above may be stale.
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM approvisionnements WHERE id = $1 FOR UPDATE`,
			appro.ID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("approvisionnement", appro.ID)
			}
			return fmt.Errorf("lock approvisionnement: %w", err)
		}
		if status != domain.ApproStatusApproved {
			return apperrors.InvalidTransition("approvisionnement", status, domain.ApproStatusReceived)
		}

		// Credit the ledger. A first supply creates the stock row; later ones
		// only add quantity and keep the selling price untouched.
		_, err = tx.Exec(ctx, `
			INSERT INTO stocks (id, product_id, warehouse_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (product_id, warehouse_id)
			DO UPDATE SET quantity = stocks.quantity + EXCLUDED.quantity, updated_at = NOW()`,
			uuid.New().String(), appro.ProductID, appro.WarehouseID, appro.Quantity, appro.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("credit stock: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stock_movements (id, product_id, warehouse_id, quantity_change, reason, reference_id)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), appro.ProductID, appro.WarehouseID, appro.Quantity,
			domain.MovementReasonSupply, appro.ID,
		)
		if err != nil {
			return fmt.Errorf("record stock movement: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE approvisionnements
			SET status = $2, stock_manager_id = $3, updated_at = NOW()
			WHERE id = $1 AND status = $4`,
			appro.ID, domain.ApproStatusReceived, actorID, domain.ApproStatusApproved,
		)
		if err != nil {
			return fmt.Errorf("close approvisionnement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.RetryableConflict(fmt.Errorf("approvisionnement %s concurrently modified", appro.ID))
		}
		return nil
	})
	if err != nil {
		if database.IsRetryableConflict(err) {
			return nil, apperrors.RetryableConflict(err)
		}
		return nil, err
	}

	received := *appro
	received.Status = domain.ApproStatusReceived
	received.StockManagerID = &actorID

	if err := s.producer.PublishSupplyReceived(ctx, &received); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish supply.received event",
			slog.String("approvisionnement_id", appro.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "approvisionnement received",
		slog.String("approvisionnement_id", appro.ID),
		slog.String("stock_manager_id", actorID),
		slog.String("product_id", appro.ProductID),
		slog.String("quantity", appro.Quantity.String()),
	)
	return &received, nil
}
