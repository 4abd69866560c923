package model

import "errors"

var (
	// Identity errors
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotUsable   = errors.New("account is not active")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrInvalidStatus      = errors.New("invalid user status")

	// Role errors
	ErrRoleNotFound               = errors.New("role not found")
	ErrMustHaveAtLeastOneRole     = errors.New("user must have at least one role")
	ErrCannotDeleteLastSuperAdmin = errors.New("cannot delete the last super administrator")

	// Refresh token errors
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
