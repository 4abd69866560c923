package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-wine-shop/internal/event"
	"go-wine-shop/internal/model"
	"go-wine-shop/internal/util"
	"go-wine-shop/pkg/apierror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UserService struct {
	users       UserStore
	refresh     *RefreshTokenService
	hasher      PasswordHasher
	bus         event.Bus
	phoneRegion string
	now         func() time.Time
}

func NewUserService(users UserStore, refresh *RefreshTokenService, hasher PasswordHasher, bus event.Bus, phoneRegion string) *UserService {
	return &UserService{
		users:       users,
		refresh:     refresh,
		hasher:      hasher,
		bus:         busOrDiscard(bus),
		phoneRegion: phoneRegion,
		now:         time.Now,
	}
}

func (s *UserService) Create(ctx context.Context, actorID string, req model.CreateUserRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, apierror.Validation(err)
	}

	roles, err := parseRoles(req.Roles)
	if err != nil {
		return model.User{}, err
	}

	user, err := createIdentity(ctx, s.users, s.hasher, s.phoneRegion, newIdentity{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Roles:     roles,
	}, s.now())
	if err != nil {
		return model.User{}, err
	}

	slog.Info("user created", "user_id", user.ID, "actor_id", actorID, "roles", user.RoleStrings())
	s.bus.Publish(event.New(event.TypeIdentityCreated, actorID, identityPayload(user)))
	return user, nil
}

// List normalizes paging: page starts at 1, limit defaults to 20 and is
// capped at 100.
func (s *UserService) List(ctx context.Context, q model.UserQuery) ([]model.UserSummary, model.Meta, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, model.Meta{}, err
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}

	meta := model.Meta{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}
	return summaries, meta, nil
}

func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	return s.users.FindByID(ctx, id)
}

// Update applies the non-nil profile fields and, when Roles is present, the
// new role set as one store write. A rejected role change keeps the profile.
func (s *UserService) Update(ctx context.Context, actorID string, id string, req model.UpdateUserRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, apierror.Validation(err)
	}

	change := model.ProfileChange{UpdatedAt: s.now().UTC()}
	if req.Roles != nil {
		roles, err := parseRoles(req.Roles)
		if err != nil {
			return model.User{}, err
		}
		change.Roles = roles
	}
	if req.FirstName != nil {
		name := util.SanitizeName(*req.FirstName)
		change.FirstName = &name
	}
	if req.LastName != nil {
		name := util.SanitizeName(*req.LastName)
		change.LastName = &name
	}
	if req.Email != nil {
		email := model.NormalizeEmail(*req.Email)
		change.Email = &email
	}
	if req.Phone != nil {
		phone, err := normalizePhone(*req.Phone, s.phoneRegion)
		if err != nil {
			return model.User{}, err
		}
		change.Phone = &phone
	}

	var (
		user model.User
		err  error
	)
	if change.IsEmpty() {
		user, err = s.users.FindByID(ctx, id)
	} else {
		user, err = s.users.UpdateProfile(ctx, id, change)
	}
	if err != nil {
		return model.User{}, err
	}

	slog.Info("user updated", "user_id", id, "actor_id", actorID)
	s.bus.Publish(event.New(event.TypeIdentityUpdated, actorID, identityPayload(user)))
	return user, nil
}

// AssignRole is a no-op when the role is already held.
func (s *UserService) AssignRole(ctx context.Context, actorID string, id string, rawRole string) (model.User, error) {
	role, ok := model.ParseRoleName(rawRole)
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrRoleNotFound, strings.TrimSpace(rawRole))
	}

	user, err := s.users.AddRole(ctx, id, role)
	if err != nil {
		return model.User{}, err
	}

	slog.Info("role assigned", "user_id", id, "role", role, "actor_id", actorID)
	s.bus.Publish(event.New(event.TypeRoleAssigned, actorID, event.Identity{UserID: id, Role: string(role)}))
	return user, nil
}

func (s *UserService) RemoveRole(ctx context.Context, actorID string, id string, rawRole string) (model.User, error) {
	role, ok := model.ParseRoleName(rawRole)
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrRoleNotFound, strings.TrimSpace(rawRole))
	}

	user, err := s.users.RemoveRole(ctx, id, role)
	if err != nil {
		return model.User{}, err
	}

	slog.Info("role removed", "user_id", id, "role", role, "actor_id", actorID)
	s.bus.Publish(event.New(event.TypeRoleRemoved, actorID, event.Identity{UserID: id, Role: string(role)}))
	return user, nil
}

// ChangeStatus revokes the refresh token when the account stops being ACTIVE.
func (s *UserService) ChangeStatus(ctx context.Context, actorID string, id string, rawStatus string) (model.User, error) {
	status, ok := model.ParseUserStatus(rawStatus)
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrInvalidStatus, strings.TrimSpace(rawStatus))
	}

	user, err := s.users.SetStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return model.User{}, err
	}

	if status != model.StatusActive {
		if err := s.refresh.RevokeForIdentity(ctx, id); err != nil {
			return model.User{}, err
		}
	}

	slog.Info("user status changed", "user_id", id, "status", status, "actor_id", actorID)
	s.bus.Publish(event.New(event.TypeIdentityStatusChanged, actorID, identityPayload(user)))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actorID string, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrCannotDeleteLastSuperAdmin) {
			slog.Warn("refused to delete last super admin", "user_id", id, "actor_id", actorID)
		}
		return err
	}

	slog.Info("user deleted", "user_id", id, "actor_id", actorID)
	s.bus.Publish(event.New(event.TypeIdentityDeleted, actorID, event.Identity{UserID: id}))
	return nil
}

// EnsureSuperAdmin creates an ACTIVE SUPER_ADMIN with email when none exists
// under that address. Used for bootstrap.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, email string, password string) error {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check bootstrap admin: %w", err)
	}
	if exists {
		return nil
	}

	user, err := createIdentity(ctx, s.users, s.hasher, s.phoneRegion, newIdentity{
		FirstName: "Super",
		LastName:  "Admin",
		Email:     email,
		Password:  password,
		Roles:     []model.RoleName{model.RoleSuperAdmin},
	}, s.now())
	if errors.Is(err, model.ErrEmailAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	slog.Info("bootstrap super admin created", "user_id", user.ID, "email", user.Email)
	return nil
}
