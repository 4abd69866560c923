package model

import (
	"strings"
)

// RoleName identifies a role. Display metadata lives in the catalog below,
// not on the identifier.
type RoleName string

const (
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
	RoleAdmin      RoleName = "ADMIN"
	RoleClient     RoleName = "CLIENT"
)

const DefaultAuthorityPrefix = "ROLE_"

type RoleInfo struct {
	Name        RoleName `json:"name"`
	Authority   string   `json:"authority"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Active      bool     `json:"active"`
}

var roleOrder = []RoleName{RoleSuperAdmin, RoleAdmin, RoleClient}

var roleCatalog = map[RoleName]RoleInfo{
	RoleSuperAdmin: {
		Name:        RoleSuperAdmin,
		Authority:   DefaultAuthorityPrefix + string(RoleSuperAdmin),
		DisplayName: "Super Administrator",
		Description: "Full access to the system",
		Active:      true,
	},
	RoleAdmin: {
		Name:        RoleAdmin,
		Authority:   DefaultAuthorityPrefix + string(RoleAdmin),
		DisplayName: "Administrator",
		Description: "Manages users and products",
		Active:      true,
	},
	RoleClient: {
		Name:        RoleClient,
		Authority:   DefaultAuthorityPrefix + string(RoleClient),
		DisplayName: "Client",
		Description: "Access to customer features",
		Active:      true,
	},
}

// Roles returns the catalog in a stable order.
func Roles() []RoleInfo {
	out := make([]RoleInfo, 0, len(roleOrder))
	for _, name := range roleOrder {
		out = append(out, roleCatalog[name])
	}
	return out
}

func LookupRole(name RoleName) (RoleInfo, bool) {
	info, ok := roleCatalog[name]
	return info, ok
}

// ParseRoleName accepts "admin", "ADMIN" or "ROLE_ADMIN".
func ParseRoleName(raw string) (RoleName, bool) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, DefaultAuthorityPrefix)
	role := RoleName(name)
	_, ok := roleCatalog[role]
	return role, ok
}
