package model

import "time"

// RefreshToken is the stored form of a rotation token. Only the SHA-256 hash
// of the value is persisted; Value is populated on issuance only.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the token is past its expiry. A token is still
// valid at the exact expiry instant.
func (t RefreshToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         User
	Authorities  []string
}
