package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"advisory-cms/internal/model"
	"advisory-cms/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, apierror.New("BAD_REQUEST", message, "", http.StatusBadRequest))
}

// writeError maps the sentinel error taxonomy onto stable status codes and
// machine-readable error kinds. Authentication failures are all 401 but keep
// distinguishable codes so the client pipeline can tell an expired token
// from a structurally broken one.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIALS"
		body.Message = "Invalid email or password"
	case errors.Is(err, model.ErrAccountDeactivated):
		status = http.StatusUnauthorized
		body.Code = "ACCOUNT_DEACTIVATED"
		body.Message = "Account has been deactivated; contact an administrator"
	case errors.Is(err, model.ErrMissingToken):
		status = http.StatusUnauthorized
		body.Code = "MISSING_TOKEN"
		body.Message = "Authentication token is missing"
	case errors.Is(err, model.ErrExpiredToken):
		status = http.StatusUnauthorized
		body.Code = "TOKEN_EXPIRED"
		body.Message = "Token expired"
	case errors.Is(err, model.ErrMalformedToken):
		status = http.StatusUnauthorized
		body.Code = "TOKEN_MALFORMED"
		body.Message = "Token is not valid"
	case errors.Is(err, model.ErrRevokedToken):
		status = http.StatusUnauthorized
		body.Code = "TOKEN_REVOKED"
		body.Message = "Token has been revoked"
	case errors.Is(err, model.ErrInvalidSession):
		status = http.StatusUnauthorized
		body.Code = "INVALID_SESSION"
		body.Message = "Session is no longer valid"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	case errors.Is(err, model.ErrDuplicateIdentity):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "An account with this email already exists"
	case errors.Is(err, model.ErrDuplicateSlug):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "A page with this slug already exists"
	case errors.Is(err, model.ErrAdminNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Admin not found"
	case errors.Is(err, model.ErrPageNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Page not found"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
