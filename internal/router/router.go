package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/config"
	"go-wine-shop/internal/handler"
	"go-wine-shop/internal/middleware"
	"go-wine-shop/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Role   *handler.RoleHandler
	Health *handler.HealthHandler
}

// New mounts the routes. Route gates come from mapper so they match the
// authorities it issues into tokens.
func New(
	cfg *config.Config,
	mapper *authz.Mapper,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	handlers Handlers,
) http.Handler {
	r := chi.NewRouter()
	if rateLimitMiddleware == nil {
		rateLimitMiddleware = middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	}

	if mapper == nil {
		mapper = authz.NewMapper(cfg.AuthorityPrefix)
	}
	superAdminAuthority := mapper.Authority(string(model.RoleSuperAdmin))
	adminAuthorities := []string{mapper.Authority(string(model.RoleAdmin)), superAdminAuthority}

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins, cfg.JWTHeaderName))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(authMiddleware.Authenticate)

	r.Get("/health", handlers.Health.Check)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", handlers.Auth.Login)
		auth.Post("/register", handlers.Auth.Register)
		auth.Post("/refresh", handlers.Auth.Refresh)
		auth.Post("/logout", handlers.Auth.Logout)
		auth.With(authMiddleware.RequireAuth).Get("/me", handlers.Auth.Me)
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuthorities(adminAuthorities...))

			users.Get("/", handlers.User.List)
			users.Post("/", handlers.User.Create)
			users.Get("/{id}", handlers.User.Get)
			users.Put("/{id}", handlers.User.Update)
			users.Post("/{id}/roles/assign", handlers.User.AssignRole)
			users.Post("/{id}/roles/remove", handlers.User.RemoveRole)
			users.Patch("/{id}/status", handlers.User.ChangeStatus)
			users.With(authMiddleware.RequireAuthorities(superAdminAuthority)).Delete("/{id}", handlers.User.Delete)
		})

		api.Route("/roles", func(roles chi.Router) {
			roles.Use(authMiddleware.RequireAuthorities(adminAuthorities...))

			roles.Get("/", handlers.Role.List)
			roles.Get("/active", handlers.Role.Active)
		})
	})

	return r
}
