package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/farmlink/agrimarket/pkg/errors"
	"github.com/farmlink/agrimarket/pkg/logger"
	"github.com/farmlink/agrimarket/pkg/validator"
)

// Response is the standard JSON response envelope. Every endpoint, success or
// failure, returns this shape: Success mirrors the HTTP outcome, exactly one
// of Data or Error is set, and Timestamp is the server-side emission time in
// RFC 3339 UTC.
type Response struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// WriteJSON writes a raw JSON response with the given status code.
// If encoding fails, headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorEnvelope writes a minimal error envelope with the given code and
// message. Use WriteError when an error value is at hand; this is for
// middleware and guards that reject before one exists.
func WriteErrorEnvelope(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorResponse{Code: code, Message: message},
		Timestamp: now(),
	})
}

// WriteSuccess writes a success envelope around data with an optional
// human-readable message.
func WriteSuccess(w http.ResponseWriter, status int, data any, message string) {
	WriteJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: now(),
	})
}

// WriteError writes a standardized error envelope based on the error type.
// It handles AppError, the sentinel errors from pkg/errors, and logs internal
// server errors. It prefers the request-scoped logger from context (set by
// the RequestLogger middleware) over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteJSON(w, appErr.Status, Response{
			Success:   false,
			Error:     &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
			Timestamp: now(),
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "VALIDATION_ERROR"
		message = err.Error()
	case errors.Is(err, apperrors.ErrForbidden):
		code = "FORBIDDEN"
		message = "you do not have permission to perform this action"
	case errors.Is(err, apperrors.ErrUnauthorized):
		code = "UNAUTHORIZED"
		message = "authentication required"
	case errors.Is(err, apperrors.ErrInsufficientStock):
		code = "INSUFFICIENT_STOCK"
		message = err.Error()
	case errors.Is(err, apperrors.ErrInvalidTransition):
		code = "INVALID_STATE_TRANSITION"
		message = err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		code = "CONFLICT"
		message = "the operation conflicted with a concurrent request"
	}

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorResponse{Code: code, Message: message, RequestID: requestID},
		Timestamp: now(),
	})
}

// PaginatedResponse is a generic paginated list payload, carried in the Data
// field of the envelope.
type PaginatedResponse[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse constructs a PaginatedResponse from the given items,
// total count, page, and per-page values. It computes TotalPages and HasNext.
func NewPaginatedResponse[T any](items []T, totalCount, page, perPage int) PaginatedResponse[T] {
	totalPages := totalCount / perPage
	if totalCount%perPage > 0 {
		totalPages++
	}
	if items == nil {
		items = []T{}
	}
	return PaginatedResponse[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// WriteValidationError writes a validation error envelope. It handles
// ValidationError from the validator package and returns field-level errors.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
			Timestamp: now(),
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Success:   false,
		Error:     &ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()},
		Timestamp: now(),
	})
}

// ParseUUID validates that the given string is a valid UUID and returns it.
// If invalid, it writes a 400 response and returns uuid.Nil plus false,
// signaling the caller to return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "invalid UUID: " + param,
			},
			Timestamp: now(),
		})
		return uuid.Nil, false
	}
	return id, true
}
