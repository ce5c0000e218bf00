// Package http exposes the marketplace REST API. Handlers decode and
// validate requests, resolve the acting user from the request context and
// delegate every decision, permission checks included, to the service layer.
package http

import (
	"net/http"
	"strconv"

	"github.com/farmlink/agrimarket/pkg/httputil"
	"github.com/farmlink/agrimarket/pkg/middleware"
)

// maxBodyBytes caps request bodies at 1MB.
const maxBodyBytes = 1 << 20

// actorID resolves the authenticated actor. A missing identity means the
// auth middleware was bypassed or the route is misconfigured; the request is
// rejected with 401.
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.UserIDFromContext(r.Context())
	if id == "" {
		httputil.WriteErrorEnvelope(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return "", false
	}
	return id, true
}

// parsePagination reads page/per_page query parameters with the usual
// defaults. Invalid values reject the request.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	page = 1
	perPage = 20

	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "page must be a positive integer")
			return 0, 0, false
		}
		page = p
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		pp, err := strconv.Atoi(v)
		if err != nil || pp < 1 || pp > 100 {
			httputil.WriteErrorEnvelope(w, http.StatusBadRequest, "VALIDATION_ERROR", "per_page must be an integer between 1 and 100")
			return 0, 0, false
		}
		perPage = pp
	}
	return page, perPage, true
}
