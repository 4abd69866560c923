package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"go-wine-shop/internal/model"
	"go-wine-shop/internal/token"
	"go-wine-shop/pkg/apierror"
)

const maxBodyBytes = 1 << 20

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", model.MessageInvalidCredential},
	{model.ErrAccountNotUsable, http.StatusForbidden, "ACCOUNT_NOT_USABLE", "Account is not active"},
	{model.ErrRefreshTokenNotFound, http.StatusUnauthorized, "REFRESH_TOKEN_NOT_FOUND", "Refresh token not found"},
	{model.ErrRefreshTokenExpired, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token expired"},
	{model.ErrPrincipalNotFound, http.StatusUnauthorized, "PRINCIPAL_NOT_FOUND", "Principal no longer exists"},
	{model.ErrMustHaveAtLeastOneRole, http.StatusBadRequest, "MUST_HAVE_AT_LEAST_ONE_ROLE", "User must have at least one role"},
	{model.ErrCannotDeleteLastSuperAdmin, http.StatusConflict, "CANNOT_DELETE_LAST_SUPER_ADMIN", "Cannot remove the last super administrator"},
	{model.ErrRoleNotFound, http.StatusNotFound, "ROLE_NOT_FOUND", "Role not found"},
	{model.ErrEmailAlreadyExists, http.StatusConflict, "EMAIL_ALREADY_EXISTS", "Email already in use"},
	{model.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{model.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", "Invalid user status"},
	{model.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{model.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{model.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST", "Invalid input"},

	{token.ErrExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired"},
	{token.ErrMalformed, http.StatusUnauthorized, "TOKEN_MALFORMED", "Token malformed"},
	{token.ErrInvalidSignature, http.StatusUnauthorized, "TOKEN_INVALID_SIGNATURE", "Token signature invalid"},
	{token.ErrUnsupported, http.StatusUnauthorized, "TOKEN_UNSUPPORTED", "Token unsupported"},
	{token.ErrEmptyClaims, http.StatusUnauthorized, "TOKEN_EMPTY_CLAIMS", "Token claims empty"},
	{token.ErrInvalid, http.StatusUnauthorized, "TOKEN_INVALID", "Token invalid"},
}

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if mapping, ok := lookupMapping(err); ok {
		status = mapping.status
		body.Code = mapping.code
		body.Message = mapping.message
	} else {
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

func lookupMapping(err error) (errorMapping, bool) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping, true
		}
	}
	return errorMapping{}, false
}

// decodeJSON reads a single JSON object into dst. An empty body is a
// bad request.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required", "")
		}
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}
