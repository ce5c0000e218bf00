package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

// OrderLine is one requested (product, quantity) pair.
type OrderLine struct {
	ProductID string
	Quantity  decimal.Decimal
}

// CreateOrderInput carries the fields for a new order. ClientID may be left
// empty, in which case the actor orders for themself.
type CreateOrderInput struct {
	ClientID        string
	WarehouseID     string
	PaymentMethod   string
	ShippingAddress string
	Lines           []OrderLine
}

// orderManagers may drive manager-side order transitions and create orders
// on behalf of clients.
var orderManagers = []string{domain.RoleAdmin, domain.RoleBusiness, domain.RoleCommandManager}

// OrderService drives the purchase workflow. Creation and the SHIPPED
// transition are transactional: the sufficiency check, the decrement and the
// order rows commit together or not at all.
type OrderService struct {
	orderRepo    repository.OrderRepository
	deliveryRepo repository.DeliveryRepository
	catalogRepo  repository.CatalogRepository
	pool         database.DBTX
	engine       *rbac.Engine
	producer     *event.Producer
	logger       *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	deliveryRepo repository.DeliveryRepository,
	catalogRepo repository.CatalogRepository,
	pool database.DBTX,
	engine *rbac.Engine,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		deliveryRepo: deliveryRepo,
		catalogRepo:  catalogRepo,
		pool:         pool,
		engine:       engine,
		producer:     producer,
		logger:       logger,
	}
}

// Create places an order. Each line's stock row is locked, checked for
// sufficiency and decremented in one transaction; the unit price is
// snapshotted onto the item under the same locks, so the total can never be
// computed against a price the decrement did not see.
func (s *OrderService) Create(ctx context.Context, actorID string, input CreateOrderInput) (*domain.Order, error) {
	clientID := input.ClientID
	if clientID == "" {
		clientID = actorID
	}
	if clientID != actorID {
		if err := s.engine.RequireRole(ctx, actorID, orderManagers...); err != nil {
			return nil, err
		}
	}

	if len(input.Lines) == 0 {
		return nil, apperrors.InvalidInput("order requires at least one line")
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown payment method: %s", input.PaymentMethod))
	}
	if input.ShippingAddress == "" {
		return nil, apperrors.InvalidInput("shipping address is required")
	}
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return nil, apperrors.InvalidInput("line quantity must be positive")
		}
	}
	input.Lines = mergeOrderLines(input.Lines)

	if _, err := s.catalogRepo.GetWarehouse(ctx, input.WarehouseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("warehouse", input.WarehouseID)
		}
		return nil, fmt.Errorf("validate warehouse: %w", err)
	}

	order, err := s.createTx(ctx, clientID, input)
	if err != nil {
		if database.IsRetryableConflict(err) {
			return nil, apperrors.RetryableConflict(err)
		}
		return nil, err
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("client_id", clientID),
		slog.String("warehouse_id", input.WarehouseID),
		slog.String("total_amount", order.TotalAmount.String()),
		slog.Int("items", len(order.Items)),
	)
	return order, nil
}

// mergeOrderLines sums quantities of lines naming the same product, keeping
// first-occurrence order. The sufficiency check reads each stock row once, so
// a product split across lines must be checked as one total.
func mergeOrderLines(lines []OrderLine) []OrderLine {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(line.Quantity)
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func (s *OrderService) createTx(ctx context.Context, clientID string, input CreateOrderInput) (*domain.Order, error) {
	order := &domain.Order{
		ID:              uuid.New().String(),
		ClientID:        clientID,
		WarehouseID:     input.WarehouseID,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: input.ShippingAddress,
		TotalAmount:     decimal.Zero,
	}

	err := database.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		// Lock every line's stock row before writing anything. Locks are
		// taken in request order; the sufficiency check and the price
		// snapshot happen under the same lock as the decrement.
		for _, line := range input.Lines {
			var available, unitPrice decimal.Decimal
			err := tx.QueryRow(ctx,
				`SELECT quantity, unit_price FROM stocks WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE`,
				line.ProductID, input.WarehouseID,
			).Scan(&available, &unitPrice)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NotFound("product", line.ProductID)
				}
				return fmt.Errorf("lock stock: %w", err)
			}
			if available.LessThan(line.Quantity) {
				return apperrors.InsufficientStock(line.ProductID, available.String())
			}

			order.Items = append(order.Items, domain.OrderItem{
				ID:        uuid.New().String(),
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
			})
			order.TotalAmount = order.TotalAmount.Add(line.Quantity.Mul(unitPrice))
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO orders (id, client_id, warehouse_id, status, payment_method, shipping_address, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			order.ID, order.ClientID, order.WarehouseID, order.Status,
			order.PaymentMethod, order.ShippingAddress, order.TotalAmount,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err = tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5)`,
				item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE stocks SET quantity = quantity - $3, updated_at = NOW() WHERE product_id = $1 AND warehouse_id = $2`,
				item.ProductID, order.WarehouseID, item.Quantity,
			)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO stock_movements (id, product_id, warehouse_id, quantity_change, reason, reference_id)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New().String(), item.ProductID, order.WarehouseID, item.Quantity.Neg(),
				domain.MovementReasonOrder, order.ID,
			)
			if err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns one order. Visible to its client, the driver assigned to its
// delivery, and managers.
func (s *OrderService) Get(ctx context.Context, actorID, id string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.ClientID == actorID {
		return order, nil
	}

	privileged, err := s.engine.HasRole(ctx, actorID, orderManagers...)
	if err != nil {
		return nil, err
	}
	if privileged {
		return order, nil
	}

	delivery, err := s.deliveryRepo.GetByOrderID(ctx, id)
	if err == nil && delivery.AssignedTo(actorID) {
		return order, nil
	}
	return nil, apperrors.Forbidden("insufficient role for this operation")
}

// List returns orders visible to the actor. Managers see everything; other
// actors are pinned to their own orders regardless of the filter.
func (s *OrderService) List(ctx context.Context, actorID string, f repository.OrderFilter, page, perPage int) ([]domain.Order, int, error) {
	privileged, err := s.engine.HasRole(ctx, actorID, orderManagers...)
	if err != nil {
		return nil, 0, err
	}
	if !privileged {
		f.ClientID = actorID
	}

	orders, total, err := s.orderRepo.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order through its workflow. Who may trigger which
// transition:
//
//	CANCELLED            the owning client only, and only while PENDING
//	SHIPPED, DELIVERED   command manager or admin
//
// Entering SHIPPED creates the order's delivery, exactly once.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, id, target string) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status: %s", target))
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !order.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("order", order.Status, target)
	}

	switch target {
	case domain.OrderStatusCancelled:
		if order.ClientID != actorID {
			return nil, apperrors.Forbidden("only the ordering client may cancel an order")
		}
	case domain.OrderStatusShipped, domain.OrderStatusDelivered:
		if err := s.engine.RequireRole(ctx, actorID, domain.RoleCommandManager, domain.RoleAdmin); err != nil {
			return nil, err
		}
	}

	var updated *domain.Order
	if target == domain.OrderStatusShipped {
		updated, err = s.ship(ctx, order)
	} else {
		updated, err = s.orderRepo.UpdateStatus(ctx, id, order.Status, target)
		if err != nil && errors.Is(err, apperrors.ErrConflict) {
			err = apperrors.RetryableConflict(fmt.Errorf("order %s concurrently modified", id))
		}
	}
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishOrderStatusChanged(ctx, updated, order.Status); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("from", order.Status),
		slog.String("to", target),
		slog.String("actor_id", actorID),
	)
	return updated, nil
}

// ship moves the order into SHIPPED and creates its delivery in the same
// transaction. The unique constraint on deliveries.order_id makes re-entering
// SHIPPED a no-op on the delivery side instead of a duplicate.
func (s *OrderService) ship(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	err := database.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
			order.ID, order.Status, domain.OrderStatusShipped,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.RetryableConflict(fmt.Errorf("order %s concurrently modified", order.ID))
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO deliveries (id, order_id, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (order_id) DO NOTHING`,
			uuid.New().String(), order.ID, domain.DeliveryStatusAssigned,
		)
		if err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		if database.IsRetryableConflict(err) {
			return nil, apperrors.RetryableConflict(err)
		}
		return nil, err
	}

	shipped := *order
	shipped.Status = domain.OrderStatusShipped
	return &shipped, nil
}

// Delete removes an order and its items. Administrative operation.
func (s *OrderService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.engine.RequireRole(ctx, actorID, domain.RoleAdmin, domain.RoleBusiness); err != nil {
		return err
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order deleted",
		slog.String("order_id", id),
		slog.String("actor_id", actorID),
	)
	return nil
}
