package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-wine-shop/internal/model"
	"go-wine-shop/internal/util"
)

type RefreshTokenService struct {
	tokens RefreshTokenStore
	ttl    time.Duration
	now    func() time.Time
}

func NewRefreshTokenService(tokens RefreshTokenStore, ttl time.Duration, now func() time.Time) *RefreshTokenService {
	if now == nil {
		now = time.Now
	}
	return &RefreshTokenService{tokens: tokens, ttl: ttl, now: now}
}

// Issue replaces any existing token of userID with a fresh one. The returned
// token carries the raw Value; only its hash is stored.
func (s *RefreshTokenService) Issue(ctx context.Context, userID string) (model.RefreshToken, error) {
	t := s.newToken(userID)
	if err := s.tokens.Upsert(ctx, t); err != nil {
		return model.RefreshToken{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return t, nil
}

// FindByValue is a plain lookup with no side effects.
func (s *RefreshTokenService) FindByValue(ctx context.Context, value string) (model.RefreshToken, bool, error) {
	if strings.TrimSpace(value) == "" {
		return model.RefreshToken{}, false, nil
	}

	t, err := s.tokens.FindByHash(ctx, util.HashToken(value))
	if errors.Is(err, model.ErrRefreshTokenNotFound) {
		return model.RefreshToken{}, false, nil
	}
	if err != nil {
		return model.RefreshToken{}, false, err
	}
	return t, true, nil
}

// Verify deletes an expired token and reports ErrRefreshTokenExpired.
// A live token is returned unchanged.
func (s *RefreshTokenService) Verify(ctx context.Context, t model.RefreshToken) (model.RefreshToken, error) {
	if !t.ExpiredAt(s.now()) {
		return t, nil
	}

	if _, err := s.tokens.DeleteByHash(ctx, t.TokenHash); err != nil {
		return model.RefreshToken{}, fmt.Errorf("delete expired refresh token: %w", err)
	}
	return model.RefreshToken{}, model.ErrRefreshTokenExpired
}

// Resolve finds and verifies a token by its raw value.
func (s *RefreshTokenService) Resolve(ctx context.Context, value string) (model.RefreshToken, error) {
	t, found, err := s.FindByValue(ctx, value)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	if !found {
		return model.RefreshToken{}, model.ErrRefreshTokenNotFound
	}
	return s.Verify(ctx, t)
}

// Rotate consumes current and stores its successor atomically.
func (s *RefreshTokenService) Rotate(ctx context.Context, current model.RefreshToken) (model.RefreshToken, error) {
	next := s.newToken(current.UserID)
	if err := s.tokens.Rotate(ctx, current.TokenHash, next); err != nil {
		if errors.Is(err, model.ErrRefreshTokenNotFound) {
			return model.RefreshToken{}, err
		}
		return model.RefreshToken{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return next, nil
}

// RevokeForIdentity is idempotent.
func (s *RefreshTokenService) RevokeForIdentity(ctx context.Context, userID string) error {
	if _, err := s.tokens.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (s *RefreshTokenService) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired refresh tokens: %w", err)
	}
	return removed, nil
}

// StartSweepTicker runs SweepExpired every interval until ctx is cancelled.
func (s *RefreshTokenService) StartSweepTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RefreshTokenService) sweep(ctx context.Context) {
	removed, err := s.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("refresh token sweep failed", "error", err)
		}
		return
	}
	if removed > 0 {
		slog.Info("expired refresh tokens removed", "count", removed)
	}
}

func (s *RefreshTokenService) newToken(userID string) model.RefreshToken {
	now := s.now().UTC()
	value := util.NewRefreshValue()
	return model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: util.HashToken(value),
		Value:     value,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
}
