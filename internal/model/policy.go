package model

// The checks below are evaluated by the stores while holding their lock or
// transaction, so the count they see is the count they act on.

// CheckRoleRemoval rejects removing a role when the identity holds at most one.
func CheckRoleRemoval(current []RoleName) error {
	if len(current) <= 1 {
		return ErrMustHaveAtLeastOneRole
	}
	return nil
}

// CheckSuperAdminRelease rejects an operation that would take the SUPER_ADMIN
// role away from its last holder. holders is the system-wide holder count.
func CheckSuperAdminRelease(user User, holders int) error {
	if user.HasRole(RoleSuperAdmin) && holders <= 1 {
		return ErrCannotDeleteLastSuperAdmin
	}
	return nil
}

// CheckRoleSet validates a full role set used for create or replace.
func CheckRoleSet(roles []RoleName) error {
	if len(roles) == 0 {
		return ErrMustHaveAtLeastOneRole
	}
	for _, role := range roles {
		if _, ok := LookupRole(role); !ok {
			return ErrRoleNotFound
		}
	}
	return nil
}
