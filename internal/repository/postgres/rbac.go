package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/farmlink/agrimarket/internal/domain"
	"github.com/farmlink/agrimarket/pkg/database"
	apperrors "github.com/farmlink/agrimarket/pkg/errors"
)

// RBACRepository implements repository.RBACRepository using PostgreSQL.
type RBACRepository struct {
	pool database.DBTX
}

// NewRBACRepository creates a new PostgreSQL-backed RBAC repository.
func NewRBACRepository(pool database.DBTX) *RBACRepository {
	return &RBACRepository{pool: pool}
}

// EffectiveRoles returns the names of roles the user holds through active,
// unexpired grants on active role definitions.
func (r *RBACRepository) EffectiveRoles(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		  AND ur.is_active
		  AND ro.is_active
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		ORDER BY ro.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("effective roles: %w", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	return roles, nil
}

// HasPermission reports whether any effective role grants the (resource, action) pair.
func (r *RBACRepository) HasPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			JOIN role_permissions rp ON rp.role_id = ro.id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1
			  AND ur.is_active
			  AND ro.is_active
			  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
			  AND rp.is_granted
			  AND p.resource = $2
			  AND p.action = $3
		)`

	var allowed bool
	if err := r.pool.QueryRow(ctx, query, userID, resource, action).Scan(&allowed); err != nil {
		return false, fmt.Errorf("has permission: %w", err)
	}
	return allowed, nil
}

// GetRoleByName retrieves a role definition by its unique name.
func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	query := `SELECT id, name, description, is_active, created_at FROM roles WHERE name = $1`

	var role domain.Role
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return &role, nil
}

// ListRoles returns every role definition with its granted permissions.
func (r *RBACRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	query := `SELECT id, name, description, is_active, created_at FROM roles ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}

	permQuery := `
		SELECT rp.role_id, p.id, p.resource, p.action
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.is_granted
		ORDER BY p.resource, p.action`

	permRows, err := r.pool.Query(ctx, permQuery)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	defer permRows.Close()

	byRole := make(map[string][]domain.Permission)
	for permRows.Next() {
		var roleID string
		var p domain.Permission
		if err := permRows.Scan(&roleID, &p.ID, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("scan role permission row: %w", err)
		}
		byRole[roleID] = append(byRole[roleID], p)
	}
	if err := permRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role permission rows: %w", err)
	}

	for i := range roles {
		roles[i].Permissions = byRole[roles[i].ID]
	}

	if roles == nil {
		roles = []domain.Role{}
	}
	return roles, nil
}

// ListUserGrants returns the user's grants, active ones first.
func (r *RBACRepository) ListUserGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	query := `
		SELECT ur.id, ur.user_id, ur.role_id, ro.name, COALESCE(ur.granted_by::text, ''),
		       ur.granted_at, ur.expires_at, ur.is_active
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ur.is_active DESC, ur.granted_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user grants: %w", err)
	}
	defer rows.Close()

	grants := []domain.RoleGrant{}
	for rows.Next() {
		var g domain.RoleGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.RoleID, &g.RoleName, &g.GrantedBy,
			&g.GrantedAt, &g.ExpiresAt, &g.IsActive); err != nil {
			return nil, fmt.Errorf("scan user grant row: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user grant rows: %w", err)
	}
	return grants, nil
}

// UpsertGrant creates or reactivates a grant of roleID to userID. Re-granting
// a role the user already holds refreshes grantor and expiry instead of
// failing, which makes the operation idempotent.
func (r *RBACRepository) UpsertGrant(ctx context.Context, userID, roleID, grantedBy string, expiresAt *time.Time) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, granted_by, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (user_id, role_id) DO UPDATE SET
			granted_by = EXCLUDED.granted_by,
			granted_at = NOW(),
			expires_at = EXCLUDED.expires_at,
			is_active = TRUE`

	if _, err := r.pool.Exec(ctx, query, userID, roleID, grantedBy, expiresAt); err != nil {
		return fmt.Errorf("upsert role grant: %w", err)
	}
	return nil
}

// DeactivateGrant soft-deactivates the user's grant of roleID. The row stays
// behind for auditing.
func (r *RBACRepository) DeactivateGrant(ctx context.Context, userID, roleID string) (bool, error) {
	query := `
		UPDATE user_roles
		SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2 AND is_active`

	ct, err := r.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("deactivate role grant: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
