package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// AuthResponse is the body returned by login and refresh.
type AuthResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Roles        []string `json:"roles"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserList struct {
	Users []UserSummary `json:"users"`
}

const (
	MessageUserRegistered    = "User registered successfully"
	MessageLogoutSuccess     = "Logout successful"
	MessageUserDeleted       = "User deleted successfully"
	MessageStatusChanged     = "User status changed successfully"
	MessageRoleAssigned      = "Role assigned successfully"
	MessageRoleRemoved       = "Role removed successfully"
	MessageInvalidCredential = "Invalid email or password"
)
