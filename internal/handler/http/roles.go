package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agrimarket/internal/service"
	"github.com/farmlink/agrimarket/pkg/httputil"
	"github.com/farmlink/agrimarket/pkg/validator"
)

// RoleHandler handles HTTP requests for role administration.
type RoleHandler struct {
	service *service.RoleService
	logger  *slog.Logger
}

// NewRoleHandler creates a new role HTTP handler.
func NewRoleHandler(svc *service.RoleService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{service: svc, logger: logger}
}

// GrantRoleRequest is the JSON body for granting a role to a user.
type GrantRoleRequest struct {
	Role      string `json:"role" validate:"required"`
	ExpiresAt string `json:"expires_at" validate:"omitempty"`
}

// RevokeRoleRequest is the JSON body for revoking a role from a user.
type RevokeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// ListRoles handles GET /api/v1/roles
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	roles, err := h.service.ListRoles(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, roles, "")
}

// GetUserRoles handles GET /api/v1/users/{id}/roles
func (h *RoleHandler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	grants, err := h.service.GetUserRoles(r.Context(), actor, userID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, grants, "")
}

// GrantRole handles POST /api/v1/users/{id}/roles
func (h *RoleHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req GrantRoleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "expires_at must be RFC 3339")
			return
		}
		expiresAt = &t
	}

	if err := h.service.Grant(r.Context(), actor, userID.String(), req.Role, expiresAt); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, nil, "role granted")
}

// RevokeRole handles DELETE /api/v1/users/{id}/roles
func (h *RoleHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RevokeRoleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.Revoke(r.Context(), actor, userID.String(), req.Role); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, nil, "role revoked")
}
