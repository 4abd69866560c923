package service

import (
	"context"
	"time"

	"go-wine-shop/internal/model"
)

// UserStore is the credential store. Role mutations enforce the role
// invariants atomically inside the store.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, id string, change model.ProfileChange) (model.User, error)
	SetStatus(ctx context.Context, id string, status model.UserStatus, at time.Time) (model.User, error)
	SetRoles(ctx context.Context, id string, roles []model.RoleName) (model.User, error)
	AddRole(ctx context.Context, id string, role model.RoleName) (model.User, error)
	RemoveRole(ctx context.Context, id string, role model.RoleName) (model.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q model.UserQuery) ([]model.User, int, error)
	CountByRole(ctx context.Context, role model.RoleName) (int, error)
}

// RefreshTokenStore holds at most one refresh token per user, keyed by the
// hash of its value.
type RefreshTokenStore interface {
	Upsert(ctx context.Context, t model.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error
	DeleteByHash(ctx context.Context, hash string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) (bool, error)
	Burn(password string)
}
