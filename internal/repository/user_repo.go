package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-wine-shop/internal/model"
)

const userSelect = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone, u.status,
	       u.created_at, u.updated_at,
	       COALESCE(array_agg(ur.role_name ORDER BY ur.role_name)
	                FILTER (WHERE ur.role_name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if !isUUID(id) {
		return model.User{}, model.ErrUserNotFound
	}
	return findUser(ctx, r.pool, `WHERE u.id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return findUser(ctx, r.pool, `WHERE lower(u.email) = $1`, model.NormalizeEmail(email))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = $1)`,
		model.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, first_name, last_name, phone, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Status), u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return err
		}
		return insertRoles(ctx, tx, u.ID, u.Roles)
	})
	if isUniqueViolation(err, "users_email_lower_key") {
		return model.ErrEmailAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile applies change in one transaction. Role and email checks run
// before the row is written, so a rejected change leaves the user untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, change model.ProfileChange) (model.User, error) {
	if change.Roles != nil {
		if err := model.CheckRoleSet(change.Roles); err != nil {
			return model.User{}, err
		}
	}
	at := change.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var updated model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if change.Roles != nil {
			if err := lockSuperAdmins(ctx, tx); err != nil {
				return err
			}
		}
		user, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}

		if change.Roles != nil && user.HasRole(model.RoleSuperAdmin) && !containsRole(change.Roles, model.RoleSuperAdmin) {
			holders, err := countByRole(ctx, tx, model.RoleSuperAdmin)
			if err != nil {
				return err
			}
			if err := model.CheckSuperAdminRelease(user, holders); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users
			 SET email = COALESCE($2, email),
			     first_name = COALESCE($3, first_name),
			     last_name = COALESCE($4, last_name),
			     phone = COALESCE($5, phone),
			     updated_at = $6
			 WHERE id = $1`,
			id, change.Email, change.FirstName, change.LastName, change.Phone, at); err != nil {
			return err
		}

		if change.Roles != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
				return err
			}
			if err := insertRoles(ctx, tx, id, change.Roles); err != nil {
				return err
			}
		}

		updated, err = findUser(ctx, tx, `WHERE u.id = $1`, id)
		return err
	})
	if isUniqueViolation(err, "users_email_lower_key") {
		return model.User{}, model.ErrEmailAlreadyExists
	}
	if err != nil {
		return model.User{}, wrapDomain("update profile", err)
	}
	return updated, nil
}

// SetStatus writes only the status column so concurrent profile edits survive.
func (r *UserRepository) SetStatus(ctx context.Context, id string, status model.UserStatus, at time.Time) (model.User, error) {
	if !isUUID(id) {
		return model.User{}, model.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at)
	if err != nil {
		return model.User{}, fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.User{}, model.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

// SetRoles replaces the role set. Dropping SUPER_ADMIN from its last holder
// is rejected.
func (r *UserRepository) SetRoles(ctx context.Context, id string, roles []model.RoleName) (model.User, error) {
	if err := model.CheckRoleSet(roles); err != nil {
		return model.User{}, err
	}

	var updated model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockSuperAdmins(ctx, tx); err != nil {
			return err
		}
		user, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}

		if user.HasRole(model.RoleSuperAdmin) && !containsRole(roles, model.RoleSuperAdmin) {
			holders, err := countByRole(ctx, tx, model.RoleSuperAdmin)
			if err != nil {
				return err
			}
			if err := model.CheckSuperAdminRelease(user, holders); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		if err := insertRoles(ctx, tx, id, roles); err != nil {
			return err
		}
		if err := touch(ctx, tx, id); err != nil {
			return err
		}

		updated, err = findUser(ctx, tx, `WHERE u.id = $1`, id)
		return err
	})
	if err != nil {
		return model.User{}, wrapDomain("set roles", err)
	}
	return updated, nil
}

// AddRole is a no-op when the role is already held.
func (r *UserRepository) AddRole(ctx context.Context, id string, role model.RoleName) (model.User, error) {
	if _, ok := model.LookupRole(role); !ok {
		return model.User{}, model.ErrRoleNotFound
	}

	var updated model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		user, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if user.HasRole(role) {
			updated = user
			return nil
		}

		if err := insertRoles(ctx, tx, id, []model.RoleName{role}); err != nil {
			return err
		}
		if err := touch(ctx, tx, id); err != nil {
			return err
		}

		updated, err = findUser(ctx, tx, `WHERE u.id = $1`, id)
		return err
	})
	if err != nil {
		return model.User{}, wrapDomain("add role", err)
	}
	return updated, nil
}

// RemoveRole locks the user row so the role count cannot change between the
// check and the delete.
func (r *UserRepository) RemoveRole(ctx context.Context, id string, role model.RoleName) (model.User, error) {
	if _, ok := model.LookupRole(role); !ok {
		return model.User{}, model.ErrRoleNotFound
	}

	var updated model.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if role == model.RoleSuperAdmin {
			if err := lockSuperAdmins(ctx, tx); err != nil {
				return err
			}
		}
		user, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := model.CheckRoleRemoval(user.Roles); err != nil {
			return err
		}
		if !user.HasRole(role) {
			updated = user
			return nil
		}

		if role == model.RoleSuperAdmin {
			holders, err := countByRole(ctx, tx, model.RoleSuperAdmin)
			if err != nil {
				return err
			}
			if err := model.CheckSuperAdminRelease(user, holders); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM user_roles WHERE user_id = $1 AND role_name = $2`, id, string(role)); err != nil {
			return err
		}
		if err := touch(ctx, tx, id); err != nil {
			return err
		}

		updated, err = findUser(ctx, tx, `WHERE u.id = $1`, id)
		return err
	})
	if err != nil {
		return model.User{}, wrapDomain("remove role", err)
	}
	return updated, nil
}

// Delete removes the user and, through ON DELETE CASCADE, its roles and
// refresh token.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockSuperAdmins(ctx, tx); err != nil {
			return err
		}
		user, err := lockUser(ctx, tx, id)
		if err != nil {
			return err
		}

		if user.HasRole(model.RoleSuperAdmin) {
			holders, err := countByRole(ctx, tx, model.RoleSuperAdmin)
			if err != nil {
				return err
			}
			if err := model.CheckSuperAdminRelease(user, holders); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	return wrapDomain("delete user", err)
}

func (r *UserRepository) List(ctx context.Context, q model.UserQuery) ([]model.User, int, error) {
	filter := `WHERE ($1 = '' OR u.status = $1)
	  AND ($2 = '' OR EXISTS (SELECT 1 FROM user_roles f WHERE f.user_id = u.id AND f.role_name = $2))`
	status := string(q.Status)
	role := string(q.Role)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users u `+filter, status, role).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		userSelect+" "+filter+`
		GROUP BY u.id
		ORDER BY u.created_at, u.id
		LIMIT $3 OFFSET $4`,
		status, role, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, q.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role model.RoleName) (int, error) {
	count, err := countByRole(ctx, r.pool, role)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

func findUser(ctx context.Context, q querier, where string, arg any) (model.User, error) {
	u, err := scanUser(q.QueryRow(ctx, userSelect+" "+where+" GROUP BY u.id", arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u      model.User
		status string
		roles  []string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&status, &u.CreatedAt, &u.UpdatedAt, &roles); err != nil {
		return model.User{}, err
	}

	u.Status = model.UserStatus(status)
	u.Roles = make([]model.RoleName, 0, len(roles))
	for _, role := range roles {
		u.Roles = append(u.Roles, model.RoleName(role))
	}
	return u, nil
}

func lockUser(ctx context.Context, tx pgx.Tx, id string) (model.User, error) {
	if !isUUID(id) {
		return model.User{}, model.ErrUserNotFound
	}
	var locked string
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return findUser(ctx, tx, `WHERE u.id = $1`, id)
}

func insertRoles(ctx context.Context, tx pgx.Tx, userID string, roles []model.RoleName) error {
	for _, role := range roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, string(role)); err != nil {
			return fmt.Errorf("insert role %s: %w", role, err)
		}
	}
	return nil
}

func countByRole(ctx context.Context, q querier, role model.RoleName) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE role_name = $1`, string(role)).Scan(&count)
	return count, err
}

func touch(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `UPDATE users SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	return err
}

func containsRole(roles []model.RoleName, role model.RoleName) bool {
	for _, candidate := range roles {
		if strings.EqualFold(string(candidate), string(role)) {
			return true
		}
	}
	return false
}

// wrapDomain passes model sentinels through untouched and wraps anything else.
func wrapDomain(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrRoleNotFound),
		errors.Is(err, model.ErrMustHaveAtLeastOneRole),
		errors.Is(err, model.ErrCannotDeleteLastSuperAdmin),
		errors.Is(err, model.ErrEmailAlreadyExists):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
