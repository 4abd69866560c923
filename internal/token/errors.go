package token

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrUnsupported      = errors.New("token unsupported")
	ErrEmptyClaims      = errors.New("token claims empty")
	ErrInvalid          = errors.New("token invalid")
)

// Kind returns a short label for a validation failure, used in logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrEmptyClaims):
		return "empty_claims"
	default:
		return "invalid"
	}
}
