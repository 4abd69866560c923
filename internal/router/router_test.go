package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/config"
	"go-wine-shop/internal/event"
	"go-wine-shop/internal/handler"
	"go-wine-shop/internal/middleware"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/repository"
	"go-wine-shop/internal/service"
	"go-wine-shop/internal/token"
	"go-wine-shop/internal/util"
)

const (
	rootEmail    = "root@wine.test"
	rootPassword = "root-secret"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerWithPrefix(t, "ROLE_")
}

func newServerWithPrefix(t *testing.T, authorityPrefix string) *server {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		JWTSecret:        "router-test-secret-0123456789-abcdef",
		JWTAccessTTL:     15 * time.Minute,
		JWTIssuer:        "wine-ecommerce",
		JWTRefreshTTL:    24 * time.Hour,
		JWTHeaderName:    "Authorization",
		JWTTokenPrefix:   "Bearer ",
		AuthorityPrefix:  authorityPrefix,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	users, tokens := repository.NewMemoryRepositories()
	codec, err := token.NewCodec(token.Options{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	require.NoError(t, err)
	hasher, err := util.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	mapper := authz.NewMapper(cfg.AuthorityPrefix)
	bus := event.NewBus()
	refresh := service.NewRefreshTokenService(tokens, cfg.JWTRefreshTTL, time.Now)
	authService := service.NewAuthService(users, refresh, codec, mapper, hasher, bus, service.AuthOptions{
		AccessTTL:   cfg.JWTAccessTTL,
		TokenPrefix: cfg.JWTTokenPrefix,
		PhoneRegion: "FR",
	})
	userService := service.NewUserService(users, refresh, hasher, bus, "FR")
	require.NoError(t, userService.EnsureSuperAdmin(context.Background(), rootEmail, rootPassword))

	h := New(cfg, mapper, middleware.NewAuthMiddleware(authService, cfg.JWTHeaderName), nil, Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(userService),
		Role:   handler.NewRoleHandler(service.NewRoleService(mapper)),
		Health: handler.NewHealthHandler(nil),
	})
	return &server{t: t, handler: h}
}

func (s *server) do(method string, path string, accessToken string, body any) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (s *server) login(email string, password string) model.AuthResponse {
	s.t.Helper()

	status, env := s.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, status, env.Error)

	var auth model.AuthResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	return auth
}

func (s *server) register(email string) {
	s.t.Helper()

	status, env := s.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		FirstName: "Ana",
		LastName:  "Vino",
		Email:     email,
		Password:  "client-pass",
	})
	require.Equal(s.t, http.StatusCreated, status, env.Error)
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	status, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	s.register("ana@wine.test")

	status, env := s.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		FirstName: "Other", LastName: "Ana", Email: "ANA@wine.test", Password: "client-pass",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EMAIL_ALREADY_EXISTS", errorCode(env))

	status, env = s.do(http.MethodPost, "/auth/register", "", model.RegisterRequest{
		FirstName: "Bad", LastName: "Mail", Email: "not-an-email", Password: "client-pass",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(env))

	auth := s.login("ana@wine.test", "client-pass")
	assert.NotEmpty(t, auth.Token)
	assert.NotEmpty(t, auth.RefreshToken)
	assert.Equal(t, "Bearer", auth.Type)
	assert.Equal(t, "ana@wine.test", auth.Email)
	assert.Equal(t, []string{"ROLE_CLIENT"}, auth.Roles)

	status, env = s.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "ana@wine.test", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(env))

	status, env = s.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "nobody@wine.test", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(env))
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestMe(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.register("me@wine.test")
	auth := s.login("me@wine.test", "client-pass")

	status, env := s.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(env))

	status, env = s.do(http.MethodGet, "/auth/me", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(http.MethodGet, "/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, status)

	var detail model.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, auth.ID, detail.ID)
	require.Len(t, detail.Roles, 1)
	assert.Equal(t, model.RoleClient, detail.Roles[0].Name)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.register("rot@wine.test")
	first := s.login("rot@wine.test", "client-pass")

	status, env := s.do(http.MethodPost, "/auth/refresh", "", model.RefreshRequest{RefreshToken: first.RefreshToken})
	require.Equal(t, http.StatusOK, status, env.Error)

	var second model.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, []string{"ROLE_CLIENT"}, second.Roles)

	status, env = s.do(http.MethodPost, "/auth/refresh", "", model.RefreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "REFRESH_TOKEN_NOT_FOUND", errorCode(env))

	status, _ = s.do(http.MethodPost, "/auth/logout", "", model.RefreshRequest{RefreshToken: second.RefreshToken})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/auth/logout", "", model.RefreshRequest{RefreshToken: second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "REFRESH_TOKEN_NOT_FOUND", errorCode(env))

	status, env = s.do(http.MethodPost, "/auth/refresh", "", model.RefreshRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(env))
}

func TestAdministrationAccess(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.register("client@wine.test")
	client := s.login("client@wine.test", "client-pass")

	status, env := s.do(http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(env))

	status, env = s.do(http.MethodGet, "/api/users", client.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(env))

	status, _ = s.do(http.MethodGet, "/api/roles", client.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdministrationAccessWithLowercasePrefix(t *testing.T) {
	t.Parallel()
	s := newServerWithPrefix(t, " role_ ")
	root := s.login(rootEmail, rootPassword)
	assert.Equal(t, []string{"ROLE_SUPER_ADMIN"}, root.Roles)

	status, env := s.do(http.MethodGet, "/api/users", root.Token, nil)
	assert.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.do(http.MethodGet, "/api/roles", root.Token, nil)
	assert.Equal(t, http.StatusOK, status, env.Error)

	s.register("client@wine.test")
	client := s.login("client@wine.test", "client-pass")
	status, _ = s.do(http.MethodGet, "/api/users", client.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestUserAdministration(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	root := s.login(rootEmail, rootPassword)
	assert.Equal(t, []string{"ROLE_SUPER_ADMIN"}, root.Roles)

	status, env := s.do(http.MethodPost, "/api/users", root.Token, model.CreateUserRequest{
		FirstName: "Adam",
		LastName:  "Min",
		Email:     "admin@wine.test",
		Password:  "admin-pass",
		Roles:     []string{"ADMIN"},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var created model.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Roles, 1)
	assert.Equal(t, model.RoleAdmin, created.Roles[0].Name)

	status, env = s.do(http.MethodPost, "/api/users", root.Token, model.CreateUserRequest{
		FirstName: "Ghost", LastName: "Role", Email: "ghost@wine.test", Password: "ghost-pass", Roles: []string{"SOMMELIER"},
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ROLE_NOT_FOUND", errorCode(env))

	admin := s.login("admin@wine.test", "admin-pass")

	status, env = s.do(http.MethodGet, "/api/users?page=1&limit=10", admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Total)

	status, env = s.do(http.MethodGet, "/api/users?role=admin", admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var list model.UserList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "admin@wine.test", list.Users[0].Email)

	status, env = s.do(http.MethodGet, "/api/users?status=sleeping", admin.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", errorCode(env))

	status, env = s.do(http.MethodGet, "/api/users/does-not-exist", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(env))

	rolePath := "/api/users/" + created.ID + "/roles/"
	status, env = s.do(http.MethodPost, rolePath+"remove", admin.Token, model.RoleRequest{Role: "ADMIN"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "MUST_HAVE_AT_LEAST_ONE_ROLE", errorCode(env))

	status, _ = s.do(http.MethodPost, rolePath+"assign", admin.Token, model.RoleRequest{Role: "CLIENT"})
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodPost, rolePath+"assign", admin.Token, model.RoleRequest{Role: "CLIENT"})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodDelete, "/api/users/"+created.ID, admin.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(env))

	status, env = s.do(http.MethodDelete, "/api/users/"+root.ID, root.Token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CANNOT_DELETE_LAST_SUPER_ADMIN", errorCode(env))

	status, _ = s.do(http.MethodDelete, "/api/users/"+created.ID, root.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	// The deleted admin's token no longer resolves to a principal.
	status, _ = s.do(http.MethodGet, "/api/roles", admin.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStatusChangeRevokesSessions(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	root := s.login(rootEmail, rootPassword)
	s.register("gone@wine.test")
	client := s.login("gone@wine.test", "client-pass")

	status, env := s.do(http.MethodPatch, "/api/users/"+client.ID+"/status", root.Token, model.StatusRequest{Status: "retired"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", errorCode(env))

	status, _ = s.do(http.MethodPatch, "/api/users/"+client.ID+"/status", root.Token, model.StatusRequest{Status: "suspended"})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/auth/refresh", "", model.RefreshRequest{RefreshToken: client.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "REFRESH_TOKEN_NOT_FOUND", errorCode(env))

	status, _ = s.do(http.MethodGet, "/auth/me", client.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = s.do(http.MethodPost, "/auth/login", "", model.LoginRequest{Email: "gone@wine.test", Password: "client-pass"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_NOT_USABLE", errorCode(env))
}

func TestRoles(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	root := s.login(rootEmail, rootPassword)

	status, env := s.do(http.MethodGet, "/api/roles/active", root.Token, nil)
	require.Equal(t, http.StatusOK, status)

	var roles []model.RoleInfo
	require.NoError(t, json.Unmarshal(env.Data, &roles))
	require.Len(t, roles, 3)
	assert.Equal(t, "ROLE_SUPER_ADMIN", roles[0].Authority)
}
