package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/auth"
	"github.com/taskdeck/server-go/internal/config"
	"github.com/taskdeck/server-go/internal/database"
	"github.com/taskdeck/server-go/internal/email"
	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/model"
	"github.com/taskdeck/server-go/internal/repository"
	"github.com/taskdeck/server-go/internal/util"
)

type LoginResult struct {
	Account      *model.Account
	SessionToken string
}

type ChangePasswordResult struct {
	Account      *model.Account
	SessionToken string
}

type ResetRequestResult struct {
	AccountID      string
	EmailDelivered bool
}

// CredentialService owns every identity mutation: signup, login, password
// change, the forgot/reset flow, and account deletion. It is the only
// component writing to the account repository.
type CredentialService struct {
	db            *database.DB
	accountRepo   repository.AccountRepository
	taskRepo      repository.TaskRepository
	resetStore    *ResetTokenStore
	resetRepo     repository.ResetTokenRepository
	hasher        *auth.PasswordHasher
	codec         *auth.SessionCodec
	mailer        email.Sender
	resetLinkBase string
}

func NewCredentialService(
	db *database.DB,
	accountRepo repository.AccountRepository,
	taskRepo repository.TaskRepository,
	resetStore *ResetTokenStore,
	resetRepo repository.ResetTokenRepository,
	hasher *auth.PasswordHasher,
	codec *auth.SessionCodec,
	mailer email.Sender,
	resetLinkBase string,
) *CredentialService {
	return &CredentialService{
		db:            db,
		accountRepo:   accountRepo,
		taskRepo:      taskRepo,
		resetStore:    resetStore,
		resetRepo:     resetRepo,
		hasher:        hasher,
		codec:         codec,
		mailer:        mailer,
		resetLinkBase: resetLinkBase,
	}
}

// SessionLifetime is exposed so the boundary can align cookie expiry with
// the token's own lifetime.
func (s *CredentialService) SessionLifetime() time.Duration {
	return s.codec.Lifetime()
}

func (s *CredentialService) Signup(ctx context.Context, emailAddr, password, passwordConfirm string) (*model.Account, error) {
	if emailAddr == "" || password == "" || passwordConfirm == "" {
		return nil, apperrors.ValidationError("Please provide email, password and password confirmation")
	}
	if len(strings.TrimSpace(emailAddr)) < config.MinCredentialLength ||
		len(strings.TrimSpace(password)) < config.MinCredentialLength ||
		len(strings.TrimSpace(passwordConfirm)) < config.MinCredentialLength {
		return nil, apperrors.ValidationError("Please provide valid data")
	}

	normalized := util.NormalizeEmail(emailAddr)
	if !util.IsValidEmail(normalized) {
		return nil, apperrors.InvalidInput("email", "not a valid email address")
	}
	if password != passwordConfirm {
		return nil, apperrors.PasswordMismatch()
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	account, err := s.accountRepo.Create(ctx, model.CreateAccountParams{
		Email:        normalized,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.DuplicateEmail()
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	log.Info().Str("accountId", account.ID).Msg("account created")
	return account, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password return the same error.
func (s *CredentialService) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	if emailAddr == "" || password == "" {
		return nil, apperrors.InvalidCredentials()
	}

	account, err := s.accountRepo.FindByEmail(ctx, util.NormalizeEmail(emailAddr))
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil || !s.hasher.Verify(password, account.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	token, err := s.codec.Issue(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	return &LoginResult{Account: account, SessionToken: token}, nil
}

func (s *CredentialService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, newPasswordConfirm string) (*ChangePasswordResult, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil || !s.hasher.Verify(currentPassword, account.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	if newPassword != newPasswordConfirm {
		return nil, apperrors.PasswordMismatch()
	}
	if newPassword == currentPassword {
		return nil, apperrors.NoOpChange()
	}
	if len(strings.TrimSpace(newPassword)) < config.MinCredentialLength {
		return nil, apperrors.ValidationError("New password is too short")
	}

	updated, err := s.storePassword(ctx, account.ID, newPassword)
	if err != nil {
		return nil, err
	}

	// The fresh token's issued-at must not precede the stamped change time,
	// hence the skew applied in storePassword.
	token, err := s.codec.Issue(updated.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	log.Info().Str("accountId", updated.ID).Msg("password changed")
	return &ChangePasswordResult{Account: updated, SessionToken: token}, nil
}

// RequestPasswordReset issues a reset token and mails the reset link. The
// token survives a delivery failure; the result records whether the email
// went out so the boundary can surface a warning.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, emailAddr string) (*ResetRequestResult, error) {
	account, err := s.accountRepo.FindByEmail(ctx, util.NormalizeEmail(emailAddr))
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return nil, apperrors.AccountNotFound()
	}

	plaintext, err := s.resetStore.Issue(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}

	link := fmt.Sprintf("%s?token=%s", s.resetLinkBase, plaintext)
	body := fmt.Sprintf(
		"You requested a password reset.\n\nFollow this link to choose a new password:\n%s\n\nThe link expires in %d minutes. If you did not request this, ignore this email.",
		link, int(s.resetStore.TTL().Minutes()),
	)

	result := &ResetRequestResult{AccountID: account.ID, EmailDelivered: true}
	if err := s.mailer.Send(account.Email, "Reset your password", body); err != nil {
		log.Warn().Err(err).Str("accountId", account.ID).Msg("reset email delivery failed, token remains valid")
		result.EmailDelivered = false
	}

	return result, nil
}

func (s *CredentialService) CompletePasswordReset(ctx context.Context, plaintextToken, newPassword, newPasswordConfirm string) (*model.Account, error) {
	if newPassword != newPasswordConfirm {
		return nil, apperrors.PasswordMismatch()
	}
	if len(strings.TrimSpace(newPassword)) < config.MinCredentialLength {
		return nil, apperrors.ValidationError("New password is too short")
	}

	accountID, err := s.resetStore.Consume(ctx, plaintextToken)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) || errors.Is(err, ErrResetTokenExpired) {
			// Not-found and expired are indistinguishable to the caller.
			return nil, apperrors.TokenInvalidOrExpired()
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	updated, err := s.storePassword(ctx, accountID, newPassword)
	if err != nil {
		return nil, err
	}

	log.Info().Str("accountId", accountID).Msg("password reset completed")
	return updated, nil
}

// DeleteAccount removes the account and everything it owns in one
// transaction: tasks, reset tokens, then the account row.
func (s *CredentialService) DeleteAccount(ctx context.Context, accountID, password string) error {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil || !s.hasher.Verify(password, account.PasswordHash) {
		return apperrors.InvalidCredentials()
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.taskRepo.WithTx(tx).DeleteByAccountID(ctx, accountID); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := s.resetRepo.WithTx(tx).DeleteByAccountID(ctx, accountID); err != nil {
			return fmt.Errorf("delete reset tokens: %w", err)
		}
		if err := s.accountRepo.WithTx(tx).Delete(ctx, accountID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("accountId", accountID).Msg("account deleted")
	return nil
}

// storePassword hashes and persists a new password, stamping
// password_changed_at slightly in the past so a session issued in the same
// instant compares as not-stale.
func (s *CredentialService) storePassword(ctx context.Context, accountID, newPassword string) (*model.Account, error) {
	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	changedAt := time.Now().Add(-config.PasswordChangedSkew)
	updated, err := s.accountRepo.UpdatePassword(ctx, accountID, hash, changedAt)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if updated == nil {
		return nil, apperrors.AccountNotFound()
	}
	return updated, nil
}
