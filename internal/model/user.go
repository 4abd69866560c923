package model

import (
	"slices"
	"strings"
	"time"
)

type UserStatus string

const (
	StatusActive    UserStatus = "ACTIVE"
	StatusInactive  UserStatus = "INACTIVE"
	StatusSuspended UserStatus = "SUSPENDED"
)

var statusDisplayNames = map[UserStatus]string{
	StatusActive:    "Active",
	StatusInactive:  "Inactive",
	StatusSuspended: "Suspended",
}

// ParseUserStatus accepts any casing and surrounding whitespace.
func ParseUserStatus(raw string) (UserStatus, bool) {
	status := UserStatus(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := statusDisplayNames[status]
	return status, ok
}

func (s UserStatus) DisplayName() string {
	return statusDisplayNames[s]
}

// User is a registered identity. Role membership is stored separately from
// the user row and loaded alongside it.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Phone        string     `json:"phone,omitempty"`
	Status       UserStatus `json:"status"`
	Roles        []RoleName `json:"roles"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u User) IsActive() bool {
	return u.Status == StatusActive
}

func (u User) HasRole(role RoleName) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) HasAnyRole(roles ...RoleName) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RoleStrings returns the plain role names, sorted.
func (u User) RoleStrings() []string {
	out := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		out = append(out, string(role))
	}
	slices.Sort(out)
	return out
}

// NormalizeEmail lower-cases and trims an address so comparisons are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal is the identity resolved for a single request. It is passed
// explicitly through the request context, never stored globally.
type Principal struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Status      UserStatus `json:"status"`
	Roles       []RoleName `json:"roles"`
	Authorities []string   `json:"authorities"`
}

func (p Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// ProfileChange is a partial update applied by the store in one step. Nil
// fields are left unchanged and a nil Roles keeps the current role set.
type ProfileChange struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Roles     []RoleName
	UpdatedAt time.Time
}

func (c ProfileChange) IsEmpty() bool {
	return c.FirstName == nil && c.LastName == nil && c.Email == nil && c.Phone == nil && c.Roles == nil
}

type UserQuery struct {
	Page   int
	Limit  int
	Status UserStatus
	Role   RoleName
}

type UserSummary struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Status    UserStatus `json:"status"`
	RoleNames []string   `json:"roleNames"`
}

type UserDetail struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Phone     string     `json:"phone,omitempty"`
	Status    UserStatus `json:"status"`
	Roles     []RoleInfo `json:"roles"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    u.Status,
		RoleNames: u.RoleStrings(),
	}
}

func (u User) Detail() UserDetail {
	roles := make([]RoleInfo, 0, len(u.Roles))
	for _, name := range u.RoleStrings() {
		if info, ok := LookupRole(RoleName(name)); ok {
			roles = append(roles, info)
		}
	}

	return UserDetail{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Status:    u.Status,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
