// Package authz turns role names into the authority strings used to gate requests.
package authz

import (
	"slices"
	"strings"

	"go-wine-shop/internal/model"
)

type Mapper struct {
	prefix string
}

func NewMapper(prefix string) *Mapper {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = model.DefaultAuthorityPrefix
	}
	return &Mapper{prefix: prefix}
}

func (m *Mapper) Prefix() string {
	return m.prefix
}

// Authority maps a single role. A blank role yields the bare prefix.
func (m *Mapper) Authority(role string) string {
	name := strings.ToUpper(strings.TrimSpace(role))
	if strings.HasPrefix(name, m.prefix) {
		return name
	}
	return m.prefix + name
}

// ToAuthorities returns a sorted, de-duplicated authority set.
func (m *Mapper) ToAuthorities(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		authority := m.Authority(role)
		if !slices.Contains(out, authority) {
			out = append(out, authority)
		}
	}
	slices.Sort(out)
	return out
}

func (m *Mapper) FromRoles(roles []model.RoleName) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return m.ToAuthorities(names)
}

// RoleName strips the authority prefix, the inverse of Authority.
func (m *Mapper) RoleName(authority string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(authority)), m.prefix)
}

// PlainRoles converts roles to claim values: plain names without the prefix.
func (m *Mapper) PlainRoles(roles []model.RoleName) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, m.RoleName(string(role)))
	}
	slices.Sort(out)
	return out
}

func (m *Mapper) Principal(user model.User) model.Principal {
	return model.Principal{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Status:      user.Status,
		Roles:       append([]model.RoleName{}, user.Roles...),
		Authorities: m.FromRoles(user.Roles),
	}
}

// HasAny reports whether granted contains at least one of required.
func HasAny(granted []string, required ...string) bool {
	for _, authority := range required {
		if slices.Contains(granted, authority) {
			return true
		}
	}
	return false
}
