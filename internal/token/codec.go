// Package token issues and validates the HS256 signed tokens carried in the
// Authorization header.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultRolesClaim  = "roles"
	DefaultUserIDClaim = "userId"
)

type Options struct {
	Secret      string
	Issuer      string
	RolesClaim  string
	UserIDClaim string
}

type Codec struct {
	key         []byte
	issuer      string
	rolesClaim  string
	userIDClaim string
	now         func() time.Time
}

type Option func(*Codec)

// WithClock replaces the wall clock used for issued-at, expiry and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(opts Options, options ...Option) (*Codec, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(opts.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidArgument)
	}

	codec := &Codec{
		key:         []byte(opts.Secret),
		issuer:      opts.Issuer,
		rolesClaim:  firstNonBlank(opts.RolesClaim, DefaultRolesClaim),
		userIDClaim: firstNonBlank(opts.UserIDClaim, DefaultUserIDClaim),
		now:         time.Now,
	}
	for _, option := range options {
		option(codec)
	}

	return codec, nil
}

func (c *Codec) Issuer() string {
	return c.issuer
}

// AccessClaims builds the custom claims embedded in an access token.
func (c *Codec) AccessClaims(roles []string, userID string) map[string]any {
	claims := map[string]any{
		c.rolesClaim: append([]string{}, roles...),
	}
	if userID != "" {
		claims[c.userIDClaim] = userID
	}
	return claims
}

// Issue signs a token for subject. Registered claims always win over
// entries of the same name in claims.
func (c *Codec) Issue(subject string, claims map[string]any, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidArgument)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	}

	// NumericDate carries whole seconds. Truncating here keeps exp - iat equal
	// to ttl and makes the logged expiry match the claim.
	now := c.now().Truncate(time.Second)
	mapClaims := jwt.MapClaims{}
	for key, value := range claims {
		mapClaims[key] = value
	}
	mapClaims["sub"] = subject
	mapClaims["iss"] = c.issuer
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	mapClaims["jti"] = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	slog.Debug("token issued", "subject", subject, "expires_at", now.Add(ttl).UTC())
	return signed, nil
}

// IssueRefreshMarker issues a token tagged type=refresh.
func (c *Codec) IssueRefreshMarker(subject string, ttl time.Duration) (string, error) {
	return c.Issue(subject, map[string]any{claimType: refreshTypeValue}, ttl)
}

// ParseAndValidate verifies signature, expiry, issuer and subject.
func (c *Codec) ParseAndValidate(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrInvalid)
	}

	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, mapClaims, c.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, classify(err)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("%w: missing or invalid exp", ErrInvalid)
	}
	if c.now().After(exp.Time) {
		return Claims{}, ErrExpired
	}

	issuer, err := mapClaims.GetIssuer()
	if err != nil || issuer != c.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}

	subject, err := mapClaims.GetSubject()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: invalid sub", ErrInvalid)
	}
	if strings.TrimSpace(subject) == "" {
		return Claims{}, ErrEmptyClaims
	}

	claims := Claims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: exp.Time,
		Roles:     normalizeRoles(mapClaims[c.rolesClaim]),
		Raw:       mapClaims,
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	claims.ID, _ = mapClaims["jti"].(string)
	claims.Type, _ = mapClaims[claimType].(string)
	claims.UserID, claims.HasUserID = normalizeUserID(mapClaims[c.userIDClaim])

	return claims, nil
}

func (c *Codec) ExtractSubject(raw string) (string, error) {
	claims, err := c.ParseAndValidate(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Codec) ExtractRoles(raw string) ([]string, error) {
	claims, err := c.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}

// ExtractUserID returns false when the token is valid but carries no user id.
func (c *Codec) ExtractUserID(raw string) (string, bool, error) {
	claims, err := c.ParseAndValidate(raw)
	if err != nil {
		return "", false, err
	}
	return claims.UserID, claims.HasUserID, nil
}

// IsExpired never fails: a token that does not validate counts as expired.
func (c *Codec) IsExpired(raw string) bool {
	claims, err := c.ParseAndValidate(raw)
	if err != nil {
		return true
	}
	return c.now().After(claims.ExpiresAt)
}

// IsRefreshMarker reports whether raw is a valid token tagged type=refresh.
func (c *Codec) IsRefreshMarker(raw string) bool {
	claims, err := c.ParseAndValidate(raw)
	if err != nil {
		return false
	}
	return claims.IsRefreshMarker()
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("%w: alg %v", ErrUnsupported, t.Header["alg"])
	}
	return c.key, nil
}

// HasJWTShape reports whether raw has exactly three non-empty dot separated segments.
func HasJWTShape(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnsupported), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

func firstNonBlank(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
