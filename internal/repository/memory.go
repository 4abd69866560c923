package repository

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"go-wine-shop/internal/model"
)

// memoryState backs both in-memory repositories. Every read and mutation
// runs under mu, which makes each check-then-act atomic.
type memoryState struct {
	mu      sync.Mutex
	users   map[string]model.User
	emails  map[string]string
	tokens  map[string]model.RefreshToken
	byHash  map[string]string
	nowFunc func() time.Time
}

type MemoryUserRepository struct {
	state *memoryState
}

type MemoryTokenRepository struct {
	state *memoryState
}

// NewMemoryRepositories returns a user and token repository sharing state, so
// deleting a user also drops its refresh token.
func NewMemoryRepositories() (*MemoryUserRepository, *MemoryTokenRepository) {
	state := &memoryState{
		users:   make(map[string]model.User),
		emails:  make(map[string]string),
		tokens:  make(map[string]model.RefreshToken),
		byHash:  make(map[string]string),
		nowFunc: time.Now,
	}
	return &MemoryUserRepository{state: state}, &MemoryTokenRepository{state: state}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	id, ok := r.state.emails[model.NormalizeEmail(email)]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return cloneUser(r.state.users[id]), nil
}

func (r *MemoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	_, ok := r.state.emails[model.NormalizeEmail(email)]
	return ok, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	if u.ID == "" {
		return errors.New("create user: id is required")
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	key := model.NormalizeEmail(u.Email)
	if _, exists := r.state.emails[key]; exists {
		return model.ErrEmailAlreadyExists
	}
	if _, exists := r.state.users[u.ID]; exists {
		return errors.New("create user: duplicate id")
	}

	r.state.users[u.ID] = cloneUser(u)
	r.state.emails[key] = u.ID
	return nil
}

// UpdateProfile validates every part of change before writing any of it.
func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id string, change model.ProfileChange) (model.User, error) {
	if change.Roles != nil {
		if err := model.CheckRoleSet(change.Roles); err != nil {
			return model.User{}, err
		}
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	if change.Roles != nil && u.HasRole(model.RoleSuperAdmin) && !slices.Contains(change.Roles, model.RoleSuperAdmin) {
		if err := model.CheckSuperAdminRelease(u, r.state.countByRole(model.RoleSuperAdmin)); err != nil {
			return model.User{}, err
		}
	}

	oldKey := model.NormalizeEmail(u.Email)
	newKey := oldKey
	if change.Email != nil {
		newKey = model.NormalizeEmail(*change.Email)
		if owner, taken := r.state.emails[newKey]; taken && owner != id {
			return model.User{}, model.ErrEmailAlreadyExists
		}
	}

	if newKey != oldKey {
		delete(r.state.emails, oldKey)
		r.state.emails[newKey] = id
	}
	if change.Email != nil {
		u.Email = *change.Email
	}
	if change.FirstName != nil {
		u.FirstName = *change.FirstName
	}
	if change.LastName != nil {
		u.LastName = *change.LastName
	}
	if change.Phone != nil {
		u.Phone = *change.Phone
	}
	if change.Roles != nil {
		u.Roles = dedupeRoles(change.Roles)
	}
	u.UpdatedAt = change.UpdatedAt
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = r.state.nowFunc().UTC()
	}

	r.state.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) SetStatus(_ context.Context, id string, status model.UserStatus, at time.Time) (model.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	u.Status = status
	u.UpdatedAt = at
	r.state.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) SetRoles(_ context.Context, id string, roles []model.RoleName) (model.User, error) {
	if err := model.CheckRoleSet(roles); err != nil {
		return model.User{}, err
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if u.HasRole(model.RoleSuperAdmin) && !slices.Contains(roles, model.RoleSuperAdmin) {
		if err := model.CheckSuperAdminRelease(u, r.state.countByRole(model.RoleSuperAdmin)); err != nil {
			return model.User{}, err
		}
	}

	u.Roles = dedupeRoles(roles)
	u.UpdatedAt = r.state.nowFunc().UTC()
	r.state.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) AddRole(_ context.Context, id string, role model.RoleName) (model.User, error) {
	if _, ok := model.LookupRole(role); !ok {
		return model.User{}, model.ErrRoleNotFound
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if u.HasRole(role) {
		return cloneUser(u), nil
	}

	u.Roles = append(slices.Clone(u.Roles), role)
	u.UpdatedAt = r.state.nowFunc().UTC()
	r.state.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) RemoveRole(_ context.Context, id string, role model.RoleName) (model.User, error) {
	if _, ok := model.LookupRole(role); !ok {
		return model.User{}, model.ErrRoleNotFound
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if err := model.CheckRoleRemoval(u.Roles); err != nil {
		return model.User{}, err
	}
	if !u.HasRole(role) {
		return cloneUser(u), nil
	}
	if role == model.RoleSuperAdmin {
		if err := model.CheckSuperAdminRelease(u, r.state.countByRole(model.RoleSuperAdmin)); err != nil {
			return model.User{}, err
		}
	}

	u.Roles = slices.DeleteFunc(slices.Clone(u.Roles), func(candidate model.RoleName) bool {
		return candidate == role
	})
	u.UpdatedAt = r.state.nowFunc().UTC()
	r.state.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	u, ok := r.state.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	if err := model.CheckSuperAdminRelease(u, r.state.countByRole(model.RoleSuperAdmin)); err != nil {
		return err
	}

	delete(r.state.users, id)
	delete(r.state.emails, model.NormalizeEmail(u.Email))
	r.state.dropToken(id)
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context, q model.UserQuery) ([]model.User, int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	matched := make([]model.User, 0, len(r.state.users))
	for _, u := range r.state.users {
		if q.Status != "" && u.Status != q.Status {
			continue
		}
		if q.Role != "" && !u.HasRole(q.Role) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start < 0 || start >= total {
		return []model.User{}, total, nil
	}
	end := min(start+q.Limit, total)
	return matched[start:end], total, nil
}

func (r *MemoryUserRepository) CountByRole(_ context.Context, role model.RoleName) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	return r.state.countByRole(role), nil
}

func (r *MemoryTokenRepository) Upsert(_ context.Context, t model.RefreshToken) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, ok := r.state.users[t.UserID]; !ok {
		return model.ErrUserNotFound
	}
	r.state.putToken(t)
	return nil
}

func (r *MemoryTokenRepository) FindByHash(_ context.Context, hash string) (model.RefreshToken, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	userID, ok := r.state.byHash[hash]
	if !ok {
		return model.RefreshToken{}, model.ErrRefreshTokenNotFound
	}
	return r.state.tokens[userID], nil
}

func (r *MemoryTokenRepository) Rotate(_ context.Context, oldHash string, next model.RefreshToken) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	owner, ok := r.state.byHash[oldHash]
	if !ok {
		return model.ErrRefreshTokenNotFound
	}
	if owner != next.UserID {
		return errors.New("rotate refresh token: owner mismatch")
	}

	r.state.dropToken(owner)
	r.state.putToken(next)
	return nil
}

func (r *MemoryTokenRepository) DeleteByHash(_ context.Context, hash string) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	userID, ok := r.state.byHash[hash]
	if !ok {
		return false, nil
	}
	r.state.dropToken(userID)
	return true, nil
}

func (r *MemoryTokenRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, ok := r.state.tokens[userID]; !ok {
		return 0, nil
	}
	r.state.dropToken(userID)
	return 1, nil
}

func (r *MemoryTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	var removed int64
	for userID, t := range r.state.tokens {
		if t.ExpiredAt(now) {
			r.state.dropToken(userID)
			removed++
		}
	}
	return removed, nil
}

func (r *MemoryTokenRepository) CountByUser(_ context.Context, userID string) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, ok := r.state.tokens[userID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memoryState) countByRole(role model.RoleName) int {
	count := 0
	for _, u := range s.users {
		if u.HasRole(role) {
			count++
		}
	}
	return count
}

func (s *memoryState) putToken(t model.RefreshToken) {
	s.dropToken(t.UserID)
	t.Value = ""
	s.tokens[t.UserID] = t
	s.byHash[t.TokenHash] = t.UserID
}

func (s *memoryState) dropToken(userID string) {
	if existing, ok := s.tokens[userID]; ok {
		delete(s.byHash, existing.TokenHash)
		delete(s.tokens, userID)
	}
}

func cloneUser(u model.User) model.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}

func dedupeRoles(roles []model.RoleName) []model.RoleName {
	out := make([]model.RoleName, 0, len(roles))
	for _, role := range roles {
		if !slices.Contains(out, role) {
			out = append(out, role)
		}
	}
	return out
}
