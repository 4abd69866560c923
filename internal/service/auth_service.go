package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/event"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/token"
	"go-wine-shop/pkg/apierror"
)

type AuthOptions struct {
	AccessTTL   time.Duration
	TokenPrefix string
	PhoneRegion string
}

type AuthService struct {
	users       UserStore
	refresh     *RefreshTokenService
	codec       *token.Codec
	mapper      *authz.Mapper
	hasher      PasswordHasher
	bus         event.Bus
	accessTTL   time.Duration
	tokenPrefix string
	phoneRegion string
	now         func() time.Time
}

func NewAuthService(
	users UserStore,
	refresh *RefreshTokenService,
	codec *token.Codec,
	mapper *authz.Mapper,
	hasher PasswordHasher,
	bus event.Bus,
	opts AuthOptions,
) *AuthService {
	prefix := opts.TokenPrefix
	if prefix == "" {
		prefix = "Bearer "
	}

	return &AuthService{
		users:       users,
		refresh:     refresh,
		codec:       codec,
		mapper:      mapper,
		hasher:      hasher,
		bus:         busOrDiscard(bus),
		accessTTL:   opts.AccessTTL,
		tokenPrefix: prefix,
		phoneRegion: opts.PhoneRegion,
		now:         time.Now,
	}
}

// Login never tells the caller whether the email exists; only the logs do.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.TokenPair, error) {
	if err := req.Validate(); err != nil {
		return model.TokenPair{}, apierror.Validation(err)
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Burn(req.Password)
		slog.Warn("login rejected: unknown email", "email", model.NormalizeEmail(req.Email))
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !ok {
		slog.Warn("login rejected: wrong password", "user_id", user.ID)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if !user.IsActive() {
		slog.Warn("login rejected: account not usable", "user_id", user.ID, "status", user.Status)
		return model.TokenPair{}, model.ErrAccountNotUsable
	}

	access, err := s.issueAccess(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	slog.Info("user logged in", "user_id", user.ID)
	s.bus.Publish(event.New(event.TypeIdentityLoggedIn, user.ID, identityPayload(user)))

	return s.pair(user, access, refresh), nil
}

// Register creates an ACTIVE identity holding only CLIENT.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, apierror.Validation(err)
	}

	user, err := createIdentity(ctx, s.users, s.hasher, s.phoneRegion, newIdentity{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Roles:     []model.RoleName{model.RoleClient},
	}, s.now())
	if err != nil {
		return model.User{}, err
	}

	slog.Info("user registered", "user_id", user.ID)
	s.bus.Publish(event.New(event.TypeIdentityRegistered, user.ID, identityPayload(user)))
	return user, nil
}

// Refresh consumes the refresh token and returns a new pair. The rotation is
// done before the access token is signed, so a caller that loses a race gets
// nothing.
func (s *AuthService) Refresh(ctx context.Context, value string) (model.TokenPair, error) {
	current, err := s.refresh.Resolve(ctx, value)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, current.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrPrincipalNotFound
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive() {
		if err := s.refresh.RevokeForIdentity(ctx, user.ID); err != nil {
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, model.ErrAccountNotUsable
	}

	next, err := s.refresh.Rotate(ctx, current)
	if err != nil {
		return model.TokenPair{}, err
	}

	access, err := s.issueAccess(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.bus.Publish(event.New(event.TypeTokenRefreshed, user.ID, identityPayload(user)))
	return s.pair(user, access, next), nil
}

// Logout revokes the refresh token of the owner. Access tokens stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, value string) error {
	current, found, err := s.refresh.FindByValue(ctx, value)
	if err != nil {
		return fmt.Errorf("find refresh token: %w", err)
	}
	if !found {
		return model.ErrRefreshTokenNotFound
	}

	if err := s.refresh.RevokeForIdentity(ctx, current.UserID); err != nil {
		return err
	}

	slog.Info("user logged out", "user_id", current.UserID)
	s.bus.Publish(event.New(event.TypeIdentityLoggedOut, current.UserID, event.Identity{UserID: current.UserID}))
	return nil
}

// Authenticate resolves the principal for an Authorization header value.
// A missing, malformed or invalid token yields (nil, nil). The only errors
// are ErrPrincipalNotFound and store failures.
func (s *AuthService) Authenticate(ctx context.Context, header string) (*model.Principal, error) {
	if !strings.HasPrefix(header, s.tokenPrefix) {
		return nil, nil
	}

	raw := strings.TrimSpace(header[len(s.tokenPrefix):])
	if !token.HasJWTShape(raw) {
		return nil, nil
	}

	claims, err := s.codec.ParseAndValidate(raw)
	if err != nil {
		slog.Debug("bearer token rejected", "reason", token.Kind(err))
		return nil, nil
	}

	user, err := s.users.FindByEmail(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve principal: %w", err)
	}

	if !user.IsActive() {
		slog.Debug("bearer token of unusable account ignored", "user_id", user.ID, "status", user.Status)
		return nil, nil
	}

	principal := s.mapper.Principal(user)
	return &principal, nil
}

func (s *AuthService) Me(ctx context.Context, principal model.Principal) (model.UserDetail, error) {
	user, err := s.users.FindByID(ctx, principal.ID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserDetail{}, model.ErrPrincipalNotFound
	}
	if err != nil {
		return model.UserDetail{}, fmt.Errorf("find user: %w", err)
	}
	return user.Detail(), nil
}

func (s *AuthService) issueAccess(user model.User) (string, error) {
	claims := s.codec.AccessClaims(s.mapper.PlainRoles(user.Roles), user.ID)
	access, err := s.codec.Issue(user.Email, claims, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

func (s *AuthService) pair(user model.User, access string, refresh model.RefreshToken) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Value,
		User:         user,
		Authorities:  s.mapper.FromRoles(user.Roles),
	}
}
