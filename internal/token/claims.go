package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimType        = "type"
	refreshTypeValue = "refresh"
)

// Claims is the validated content of a token. Roles is always a list, no
// matter how the claim was encoded.
type Claims struct {
	Subject   string
	Issuer    string
	ID        string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Roles     []string
	UserID    string
	HasUserID bool
	Raw       jwt.MapClaims
}

func (c Claims) IsRefreshMarker() bool {
	return c.Type == refreshTypeValue
}

// normalizeRoles accepts a JSON list or a comma separated string.
func normalizeRoles(value any) []string {
	var parts []string

	switch v := value.(type) {
	case nil:
		return []string{}
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		parts = make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func normalizeUserID(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}
