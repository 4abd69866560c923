package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/event"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/repository"
	"go-wine-shop/internal/token"
	"go-wine-shop/internal/util"
)

const (
	testSecret     = "service-test-secret-0123456789-abcdefghij"
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	users   *repository.MemoryUserRepository
	tokens  *repository.MemoryTokenRepository
	clock   *testClock
	codec   *token.Codec
	mapper  *authz.Mapper
	refresh *RefreshTokenService
	auth    *AuthService
	admin   *UserService
	bus     *event.InMemoryBus
	hasher  *util.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users, tokens := repository.NewMemoryRepositories()
	clock := &testClock{now: time.Now().UTC()}

	codec, err := token.NewCodec(token.Options{Secret: testSecret, Issuer: "wine-ecommerce"})
	require.NoError(t, err)

	hasher, err := util.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	mapper := authz.NewMapper(model.DefaultAuthorityPrefix)
	bus := event.NewBus()
	refresh := NewRefreshTokenService(tokens, testRefreshTTL, clock.Now)

	return &fixture{
		users:   users,
		tokens:  tokens,
		clock:   clock,
		codec:   codec,
		mapper:  mapper,
		refresh: refresh,
		auth: NewAuthService(users, refresh, codec, mapper, hasher, bus, AuthOptions{
			AccessTTL:   testAccessTTL,
			TokenPrefix: "Bearer ",
			PhoneRegion: "FR",
		}),
		admin:  NewUserService(users, refresh, hasher, bus, "FR"),
		bus:    bus,
		hasher: hasher,
	}
}

func (f *fixture) register(t *testing.T, email string, password string) model.User {
	t.Helper()

	user, err := f.auth.Register(context.Background(), model.RegisterRequest{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return user
}

// seedUser stores a user with arbitrary roles, bypassing registration.
func (f *fixture) seedUser(t *testing.T, email string, roles ...model.RoleName) model.User {
	t.Helper()

	user, err := createIdentity(context.Background(), f.users, f.hasher, "FR", newIdentity{
		FirstName: "Seed",
		LastName:  "User",
		Email:     email,
		Password:  "secret1",
		Roles:     roles,
	}, time.Now())
	require.NoError(t, err)
	return user
}

func (f *fixture) refreshCount(t *testing.T, userID string) int {
	t.Helper()

	count, err := f.tokens.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	return count
}
