package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/repository"
	"github.com/taskdeck/server-go/internal/util"
)

var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenExpired  = errors.New("reset token expired")
)

// ResetTokenStore issues and consumes single-use password reset tokens.
// Only the sha256 of a token is persisted; the plaintext goes out once via
// email and is never logged. An account has at most one live token: issuing
// a new one supersedes the old atomically.
type ResetTokenStore struct {
	repo repository.ResetTokenRepository
	ttl  time.Duration
}

func NewResetTokenStore(repo repository.ResetTokenRepository, ttl time.Duration) *ResetTokenStore {
	return &ResetTokenStore{repo: repo, ttl: ttl}
}

func (s *ResetTokenStore) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh 256-bit token for the account, replacing any
// existing one, and returns the plaintext value.
func (s *ResetTokenStore) Issue(ctx context.Context, accountID string) (string, error) {
	plaintext, err := util.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	token, err := s.repo.Replace(ctx, accountID, util.HashToken(plaintext))
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	log.Info().
		Str("accountId", accountID).
		Time("expiresAt", token.ExpiresAt(s.ttl)).
		Msg("reset token issued")

	return plaintext, nil
}

// Consume resolves a plaintext token to its owning account and deletes the
// record so it cannot be used twice. Expired records fail with
// ErrResetTokenExpired; callers must present that identically to not-found.
func (s *ResetTokenStore) Consume(ctx context.Context, plaintext string) (string, error) {
	token, err := s.repo.FindByTokenHash(ctx, util.HashToken(plaintext))
	if err != nil {
		return "", fmt.Errorf("find reset token: %w", err)
	}
	if token == nil {
		return "", ErrResetTokenNotFound
	}

	if token.IsExpired(s.ttl, time.Now()) {
		return "", ErrResetTokenExpired
	}

	if err := s.repo.Delete(ctx, token.ID); err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}

	return token.AccountID, nil
}
