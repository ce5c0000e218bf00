package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/event"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// deliveryManagers may assign drivers and drive any delivery transition.
var deliveryManagers = []string{domain.RoleAdmin, domain.RoleCommandManager}

// DeliveryService drives the hand-off workflow. Driver assignment and status
// advancement are gated independently.
type DeliveryService struct {
	deliveryRepo repository.DeliveryRepository
	orderRepo    repository.OrderRepository
	catalogRepo  repository.CatalogRepository
	engine       *rbac.Engine
	producer     *event.Producer
	logger       *slog.Logger
}

// NewDeliveryService creates a new delivery service.
func NewDeliveryService(
	deliveryRepo repository.DeliveryRepository,
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	engine *rbac.Engine,
	producer *event.Producer,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		deliveryRepo: deliveryRepo,
		orderRepo:    orderRepo,
		catalogRepo:  catalogRepo,
		engine:       engine,
		producer:     producer,
		logger:       logger,
	}
}

// Get returns one delivery. Visible to its assigned driver, the owning
// order's client, and managers.
func (s *DeliveryService) Get(ctx context.Context, actorID, id string) (*domain.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("delivery", id)
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	if err := s.authorizeRead(ctx, actorID, delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *DeliveryService) authorizeRead(ctx context.Context, actorID string, delivery *domain.Delivery) error {
	if delivery.AssignedTo(actorID) {
		return nil
	}

	privileged, err := s.engine.HasRole(ctx, actorID, domain.RoleAdmin, domain.RoleBusiness, domain.RoleCommandManager)
	if err != nil {
		return err
	}
	if privileged {
		return nil
	}

	order, err := s.orderRepo.GetByID(ctx, delivery.OrderID)
	if err == nil && order.ClientID == actorID {
		return nil
	}
	return apperrors.Forbidden("insufficient role for this operation")
}

// List returns deliveries visible to the actor. Managers see everything;
// drivers are pinned to their own assignments.
func (s *DeliveryService) List(ctx context.Context, actorID string, f repository.DeliveryFilter, page, perPage int) ([]domain.Delivery, int, error) {
	privileged, err := s.engine.HasRole(ctx, actorID, domain.RoleAdmin, domain.RoleBusiness, domain.RoleCommandManager)
	if err != nil {
		return nil, 0, err
	}
	if !privileged {
		driver, err := s.engine.HasRole(ctx, actorID, domain.RoleDeliveryDriver)
		if err != nil {
			return nil, 0, err
		}
		if !driver {
			return nil, 0, apperrors.Forbidden("insufficient role for this operation")
		}
		f.DriverID = actorID
	}

	deliveries, total, err := s.deliveryRepo.List(ctx, f, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, total, nil
}

// AssignDriver sets or replaces the delivery's driver. Managers only. The
// assignee must exist and hold the delivery driver role.
func (s *DeliveryService) AssignDriver(ctx context.Context, actorID, id, driverID string) (*domain.Delivery, error) {
	if err := s.engine.RequireRole(ctx, actorID, deliveryManagers...); err != nil {
		return nil, err
	}

	if _, err := s.catalogRepo.GetUser(ctx, driverID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", driverID)
		}
		return nil, fmt.Errorf("validate driver: %w", err)
	}
	isDriver, err := s.engine.HasRole(ctx, driverID, domain.RoleDeliveryDriver)
	if err != nil {
		return nil, err
	}
	if !isDriver {
		return nil, apperrors.InvalidInput(fmt.Sprintf("user %s is not a delivery driver", driverID))
	}

	delivery, err := s.deliveryRepo.AssignDriver(ctx, id, driverID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("delivery", id)
		}
		return nil, fmt.Errorf("assign driver: %w", err)
	}

	if err := s.producer.PublishDeliveryUpdated(ctx, delivery); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish delivery.updated event",
			slog.String("delivery_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "delivery driver assigned",
		slog.String("delivery_id", id),
		slog.String("driver_id", driverID),
		slog.String("actor_id", actorID),
	)
	return delivery, nil
}

// UpdateStatus advances the delivery. Allowed for the currently assigned
// driver and for managers.
func (s *DeliveryService) UpdateStatus(ctx context.Context, actorID, id, target string) (*domain.Delivery, error) {
	if !domain.IsValidDeliveryStatus(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status: %s", target))
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("delivery", id)
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	if !delivery.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("delivery", delivery.Status, target)
	}

	if !delivery.AssignedTo(actorID) {
		if err := s.engine.RequireRole(ctx, actorID, deliveryManagers...); err != nil {
			return nil, err
		}
	}

	updated, err := s.deliveryRepo.UpdateStatus(ctx, id, delivery.Status, target)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.RetryableConflict(fmt.Errorf("delivery %s concurrently modified", id))
		}
		return nil, fmt.Errorf("update delivery status: %w", err)
	}

	// Delivering the delivery completes its order.
	if target == domain.DeliveryStatusDelivered {
		if _, err := s.orderRepo.UpdateStatus(ctx, delivery.OrderID, domain.OrderStatusShipped, domain.OrderStatusDelivered); err != nil {
			if !errors.Is(err, apperrors.ErrConflict) {
				s.logger.ErrorContext(ctx, "failed to complete order for delivered delivery",
					slog.String("delivery_id", id),
					slog.String("order_id", delivery.OrderID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if err := s.producer.PublishDeliveryUpdated(ctx, updated); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish delivery.updated event",
			slog.String("delivery_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "delivery status updated",
		slog.String("delivery_id", id),
		slog.String("from", delivery.Status),
		slog.String("to", target),
		slog.String("actor_id", actorID),
	)
	return updated, nil
}
