package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-wine-shop/internal/authz"
	"go-wine-shop/internal/model"
)

func TestUserService_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates with requested roles", func(t *testing.T) {
		f := newFixture(t)
		user, err := f.admin.Create(ctx, "actor", model.CreateUserRequest{
			FirstName: "Ada",
			LastName:  "Admin",
			Email:     "Ada@X.com",
			Password:  "secret1",
			Roles:     []string{"admin", "ROLE_CLIENT"},
		})
		require.NoError(t, err)
		assert.Equal(t, "ada@x.com", user.Email)
		assert.ElementsMatch(t, []model.RoleName{model.RoleAdmin, model.RoleClient}, user.Roles)
	})

	t.Run("unknown role", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.admin.Create(ctx, "actor", model.CreateUserRequest{
			FirstName: "A", LastName: "B", Email: "a@x.com", Password: "secret1", Roles: []string{"SOMMELIER"},
		})
		require.ErrorIs(t, err, model.ErrRoleNotFound)
	})
}

func TestUserService_List(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.register(t, fmt.Sprintf("u%d@x.com", i), "secret1")
	}
	f.seedUser(t, "admin@x.com", model.RoleAdmin)

	users, meta, err := f.admin.List(ctx, model.UserQuery{Page: 0, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, model.Meta{Page: 1, Limit: 2, Total: 4, TotalPages: 2}, meta)

	users, meta, err = f.admin.List(ctx, model.UserQuery{Role: model.RoleAdmin, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@x.com", users[0].Email)
	assert.Equal(t, maxPageSize, meta.Limit)
}

func TestUserService_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	strPtr := func(s string) *string { return &s }

	t.Run("partial profile update", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		updated, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{LastName: strPtr("Durand")})
		require.NoError(t, err)
		assert.Equal(t, "Durand", updated.LastName)
		assert.Equal(t, user.FirstName, updated.FirstName)
	})

	t.Run("email collision", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@x.com", "secret1")
		user := f.register(t, "b@x.com", "secret1")

		_, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{Email: strPtr("A@x.com")})
		require.ErrorIs(t, err, model.ErrEmailAlreadyExists)
	})

	t.Run("empty role replacement", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{Roles: []string{}})
		require.ErrorIs(t, err, model.ErrMustHaveAtLeastOneRole)
	})

	t.Run("role replacement", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		updated, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{Roles: []string{"ADMIN"}})
		require.NoError(t, err)
		assert.Equal(t, []model.RoleName{model.RoleAdmin}, updated.Roles)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.admin.Update(ctx, "actor", "missing", model.UpdateUserRequest{LastName: strPtr("X")})
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("rejected demotion of last super admin keeps profile", func(t *testing.T) {
		f := newFixture(t)
		root := f.seedUser(t, "root@x.com", model.RoleSuperAdmin)

		_, err := f.admin.Update(ctx, "actor", root.ID, model.UpdateUserRequest{
			FirstName: strPtr("Renamed"),
			Email:     strPtr("moved@x.com"),
			Roles:     []string{"CLIENT"},
		})
		require.ErrorIs(t, err, model.ErrCannotDeleteLastSuperAdmin)

		found, err := f.admin.Get(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, root.FirstName, found.FirstName)
		assert.Equal(t, "root@x.com", found.Email)
		assert.Equal(t, []model.RoleName{model.RoleSuperAdmin}, found.Roles)
	})

	t.Run("unknown role keeps profile", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{
			LastName: strPtr("Durand"),
			Roles:    []string{"SOMMELIER"},
		})
		require.ErrorIs(t, err, model.ErrRoleNotFound)

		found, err := f.admin.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.LastName, found.LastName)
	})
}

func TestUserService_Roles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("assign twice is a no-op", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.AssignRole(ctx, "actor", user.ID, "ADMIN")
		require.NoError(t, err)
		updated, err := f.admin.AssignRole(ctx, "actor", user.ID, "role_admin")
		require.NoError(t, err)
		assert.ElementsMatch(t, []model.RoleName{model.RoleClient, model.RoleAdmin}, updated.Roles)
	})

	t.Run("assign unknown role", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.AssignRole(ctx, "actor", user.ID, "SOMMELIER")
		require.ErrorIs(t, err, model.ErrRoleNotFound)
	})

	t.Run("remove last role fails and keeps the set", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.RemoveRole(ctx, "actor", user.ID, "CLIENT")
		require.ErrorIs(t, err, model.ErrMustHaveAtLeastOneRole)

		current, err := f.admin.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []model.RoleName{model.RoleClient}, current.Roles)
	})
}

func TestUserService_ChangeStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	strPtr := func(s string) *string { return &s }

	t.Run("suspending revokes the refresh token", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")
		_, err := f.auth.Login(ctx, model.LoginRequest{Email: "a@x.com", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, 1, f.refreshCount(t, user.ID))

		updated, err := f.admin.ChangeStatus(ctx, "actor", user.ID, "SUSPENDED")
		require.NoError(t, err)
		assert.Equal(t, model.StatusSuspended, updated.Status)
		assert.Zero(t, f.refreshCount(t, user.ID))
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.ChangeStatus(ctx, "actor", user.ID, "BANNED")
		require.ErrorIs(t, err, model.ErrInvalidStatus)
	})

	t.Run("status change keeps profile fields", func(t *testing.T) {
		f := newFixture(t)
		user := f.register(t, "a@x.com", "secret1")

		_, err := f.admin.Update(ctx, "actor", user.ID, model.UpdateUserRequest{LastName: strPtr("Durand")})
		require.NoError(t, err)

		updated, err := f.admin.ChangeStatus(ctx, "actor", user.ID, "INACTIVE")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInactive, updated.Status)
		assert.Equal(t, "Durand", updated.LastName)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.admin.ChangeStatus(ctx, "actor", "missing", "ACTIVE")
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})
}

func TestUserService_Delete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	root := f.seedUser(t, "root@x.com", model.RoleSuperAdmin)
	require.ErrorIs(t, f.admin.Delete(ctx, "actor", root.ID), model.ErrCannotDeleteLastSuperAdmin)

	second := f.seedUser(t, "root2@x.com", model.RoleSuperAdmin)
	require.NoError(t, f.admin.Delete(ctx, "actor", root.ID))

	_, err := f.admin.Get(ctx, root.ID)
	require.ErrorIs(t, err, model.ErrUserNotFound)
	require.ErrorIs(t, f.admin.Delete(ctx, "actor", second.ID), model.ErrCannotDeleteLastSuperAdmin)

	require.ErrorIs(t, f.admin.Delete(ctx, "actor", "missing"), model.ErrUserNotFound)
}

func TestUserService_EnsureSuperAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.admin.EnsureSuperAdmin(ctx, "root@x.com", "secret1"))
	require.NoError(t, f.admin.EnsureSuperAdmin(ctx, "root@x.com", "secret1"))

	holders, err := f.users.CountByRole(ctx, model.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, holders)
}

func TestRefreshTokenService_Sweep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", "secret1")

	issued, err := f.refresh.Issue(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Value)
	assert.NotEqual(t, issued.Value, issued.TokenHash)

	removed, err := f.refresh.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.clock.Advance(testRefreshTTL + 1)
	removed, err = f.refresh.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestRoleService(t *testing.T) {
	t.Parallel()

	roles := NewRoleService(authz.NewMapper("PERM_")).All()
	require.Len(t, roles, 3)
	assert.Equal(t, model.RoleSuperAdmin, roles[0].Name)
	assert.Equal(t, "PERM_SUPER_ADMIN", roles[0].Authority)
	assert.Len(t, NewRoleService(authz.NewMapper("")).Active(), 3)
}
