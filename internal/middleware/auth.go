package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/model"
)

type authenticator interface {
	Authenticate(ctx context.Context, header string) (*model.Principal, error)
}

type contextKey string

const principalContextKey contextKey = "principal"

type AuthMiddleware struct {
	authenticator authenticator
	headerName    string
}

func NewAuthMiddleware(a authenticator, headerName string) *AuthMiddleware {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &AuthMiddleware{authenticator: a, headerName: headerName}
}

// Authenticate attaches the principal of a valid bearer token to the request
// context. It never rejects a request over a bad or missing token; the
// Require* middlewares do that.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(m.headerName)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.authenticator.Authenticate(r.Context(), header)
		switch {
		case errors.Is(err, model.ErrPrincipalNotFound):
			slog.Debug("token subject no longer exists", "request_id", RequestIDFromContext(r.Context()))
			next.ServeHTTP(w, r)
			return
		case err != nil:
			slog.Error("resolve principal failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
			writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
			return
		case principal == nil:
			next.ServeHTTP(w, r)
			return
		}

		notePrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthorities admits principals holding at least one of authorities.
func (m *AuthMiddleware) RequireAuthorities(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if !authz.HasAny(principal.Authorities, authorities...) {
				slog.Warn("access denied",
					"request_id", RequestIDFromContext(r.Context()),
					"user_id", principal.ID,
					"required", authorities,
				)
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	return principal, ok && principal != nil
}
