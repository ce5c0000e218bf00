package domain

import "time"

// Role names. These match the rows seeded into the roles table.
const (
	RoleAdmin          = "ADMIN"
	RoleBusiness       = "BUSINESS"
	RoleSupplier       = "SUPPLIER"
	RoleStockManager   = "STOCK_MANAGER"
	RoleClient         = "CLIENT"
	RoleCommandManager = "COMMAND_MANAGER"
	RoleDeliveryDriver = "DELIVERY_DRIVER"
)

// DefaultRole is assigned to every new account.
const DefaultRole = RoleClient

// Role is a named bundle of permissions.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Permission is a (resource, action) pair a role may hold.
type Permission struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// RoleGrant links a user to a role. Grants are soft-deactivated on revoke
// so the assignment history stays auditable.
type RoleGrant struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	RoleID    string     `json:"role_id"`
	RoleName  string     `json:"role_name"`
	GrantedBy string     `json:"granted_by,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// Expired reports whether the grant has an expiry in the past.
func (g *RoleGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// ValidRoles returns every role name the system knows about.
func ValidRoles() []string {
	return []string{
		RoleAdmin, RoleBusiness, RoleSupplier, RoleStockManager,
		RoleClient, RoleCommandManager, RoleDeliveryDriver,
	}
}

// IsValidRole checks whether the given name is a known role.
func IsValidRole(name string) bool {
	for _, r := range ValidRoles() {
		if r == name {
			return true
		}
	}
	return false
}
