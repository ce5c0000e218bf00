// Package rbac resolves what an actor may do. Role checks always go to the
// database rather than trusting token claims, so revoked or expired grants
// take effect on the next request.
package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/internal/repository"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// Engine answers role and permission questions about actors.
type Engine struct {
	repo   repository.RBACRepository
	logger *slog.Logger
}

// NewEngine creates a permission engine backed by the given repository.
func NewEngine(repo repository.RBACRepository, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// EffectiveRoles returns the roles the actor currently holds. An unknown
// actor has no roles; that is not an error.
func (e *Engine) EffectiveRoles(ctx context.Context, actorID string) ([]string, error) {
	roles, err := e.repo.EffectiveRoles(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("effective roles: %w", err)
	}
	return roles, nil
}

// HasRole reports whether the actor holds at least one of the given roles.
func (e *Engine) HasRole(ctx context.Context, actorID string, roles ...string) (bool, error) {
	effective, err := e.repo.EffectiveRoles(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("has role: %w", err)
	}
	for _, have := range effective {
		for _, want := range roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission reports whether any of the actor's effective roles grants the
// (resource, action) pair.
func (e *Engine) HasPermission(ctx context.Context, actorID, resource, action string) (bool, error) {
	ok, err := e.repo.HasPermission(ctx, actorID, resource, action)
	if err != nil {
		return false, fmt.Errorf("has permission: %w", err)
	}
	return ok, nil
}

// RequireRole returns a Forbidden error unless the actor holds at least one
// of the given roles.
func (e *Engine) RequireRole(ctx context.Context, actorID string, roles ...string) error {
	ok, err := e.HasRole(ctx, actorID, roles...)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("insufficient role for this action")
	}
	return nil
}

// GrantRole assigns roleName to the actor. Granting a role the actor already
// holds refreshes the existing grant. It returns false for unknown or
// deactivated role definitions.
func (e *Engine) GrantRole(ctx context.Context, actorID, roleName, grantedBy string, expiresAt *time.Time) (bool, error) {
	if !domain.IsValidRole(roleName) {
		return false, nil
	}
	role, err := e.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		if apperrors.HTTPStatus(err) == 404 {
			return false, nil
		}
		return false, fmt.Errorf("grant role: %w", err)
	}
	if !role.IsActive {
		return false, nil
	}

	if err := e.repo.UpsertGrant(ctx, actorID, role.ID, grantedBy, expiresAt); err != nil {
		return false, fmt.Errorf("grant role: %w", err)
	}

	e.logger.InfoContext(ctx, "role granted",
		slog.String("user_id", actorID),
		slog.String("role", roleName),
		slog.String("granted_by", grantedBy),
	)
	return true, nil
}

// RevokeRole deactivates the actor's grant of roleName. Revoking a role the
// actor never held succeeds as a no-op; the grant row itself is kept for
// auditing. It returns false for unknown role definitions.
func (e *Engine) RevokeRole(ctx context.Context, actorID, roleName string) (bool, error) {
	role, err := e.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		if apperrors.HTTPStatus(err) == 404 {
			return false, nil
		}
		return false, fmt.Errorf("revoke role: %w", err)
	}

	revoked, err := e.repo.DeactivateGrant(ctx, actorID, role.ID)
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	if revoked {
		e.logger.InfoContext(ctx, "role revoked",
			slog.String("user_id", actorID),
			slog.String("role", roleName),
		)
	}
	return true, nil
}

// ListRoles returns the role catalogue with permissions.
func (e *Engine) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return e.repo.ListRoles(ctx)
}

// ListGrants returns the actor's grant history, active grants first.
func (e *Engine) ListGrants(ctx context.Context, actorID string) ([]domain.RoleGrant, error) {
	return e.repo.ListUserGrants(ctx, actorID)
}
