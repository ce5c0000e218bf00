package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/rbac"
	"github.com/farmlink/agrimarket/internal/repository"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// RoleService exposes the role catalogue and grant administration on top of
// the permission engine.
type RoleService struct {
	engine      *rbac.Engine
	catalogRepo repository.CatalogRepository
	logger      *slog.Logger
}

// NewRoleService creates a new role service.
func NewRoleService(engine *rbac.Engine, catalogRepo repository.CatalogRepository, logger *slog.Logger) *RoleService {
	return &RoleService{engine: engine, catalogRepo: catalogRepo, logger: logger}
}

// canManageRoles allows admins and anyone explicitly granted roles:manage.
func (s *RoleService) canManageRoles(ctx context.Context, actorID string) error {
	admin, err := s.engine.HasRole(ctx, actorID, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	ok, err := s.engine.HasPermission(ctx, actorID, "roles", "manage")
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("insufficient role for this operation")
	}
	return nil
}

// ListRoles returns every role definition with its permissions.
func (s *RoleService) ListRoles(ctx context.Context, actorID string) ([]domain.Role, error) {
	if err := s.engine.RequireRole(ctx, actorID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.engine.ListRoles(ctx)
}

// GetUserRoles returns a user's grants. Users may read their own; otherwise
// role management rights are required.
func (s *RoleService) GetUserRoles(ctx context.Context, actorID, userID string) ([]domain.RoleGrant, error) {
	if actorID != userID {
		if err := s.canManageRoles(ctx, actorID); err != nil {
			return nil, err
		}
	}
	return s.engine.ListGrants(ctx, userID)
}

// Grant gives userID the named role, idempotently.
func (s *RoleService) Grant(ctx context.Context, actorID, userID, roleName string, expiresAt *time.Time) error {
	if err := s.canManageRoles(ctx, actorID); err != nil {
		return err
	}

	if _, err := s.catalogRepo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user", userID)
		}
		return fmt.Errorf("validate user: %w", err)
	}

	ok, err := s.engine.GrantRole(ctx, userID, roleName, actorID, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf("unknown or inactive role: %s", roleName))
	}
	return nil
}

// Revoke deactivates userID's grant of the named role. Revoking a role the
// user never held succeeds silently.
func (s *RoleService) Revoke(ctx context.Context, actorID, userID, roleName string) error {
	if err := s.canManageRoles(ctx, actorID); err != nil {
		return err
	}

	ok, err := s.engine.RevokeRole(ctx, userID, roleName)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role: %s", roleName))
	}
	return nil
}
