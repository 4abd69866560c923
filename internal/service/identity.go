package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-wine-shop/internal/event"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/util"
	"go-wine-shop/pkg/apierror"
)

type newIdentity struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	Roles     []model.RoleName
}

// createIdentity hashes the password, normalizes the profile and stores a new
// ACTIVE user.
func createIdentity(ctx context.Context, users UserStore, hasher PasswordHasher, region string, in newIdentity, now time.Time) (model.User, error) {
	if err := model.CheckRoleSet(in.Roles); err != nil {
		return model.User{}, err
	}

	phone, err := normalizePhone(in.Phone, region)
	if err != nil {
		return model.User{}, err
	}

	email := model.NormalizeEmail(in.Email)
	exists, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return model.User{}, model.ErrEmailAlreadyExists
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    util.SanitizeName(in.FirstName),
		LastName:     util.SanitizeName(in.LastName),
		Phone:        phone,
		Status:       model.StatusActive,
		Roles:        append([]model.RoleName{}, in.Roles...),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}

	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailAlreadyExists) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func normalizePhone(raw string, region string) (string, error) {
	phone, err := util.NormalizePhone(raw, region)
	if err != nil {
		return "", apierror.New("VALIDATION_ERROR", "request validation failed", "phone: must be a valid phone number", http.StatusBadRequest)
	}
	return phone, nil
}

func parseRoles(raw []string) ([]model.RoleName, error) {
	roles := make([]model.RoleName, 0, len(raw))
	for _, value := range raw {
		role, ok := model.ParseRoleName(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrRoleNotFound, value)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, model.ErrMustHaveAtLeastOneRole
	}
	return roles, nil
}

func identityPayload(u model.User) event.Identity {
	return event.Identity{UserID: u.ID, Email: u.Email, Status: string(u.Status)}
}

func busOrDiscard(bus event.Bus) event.Bus {
	if bus == nil {
		return event.Discard{}
	}
	return bus
}
