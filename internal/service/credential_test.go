package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskdeck/server-go/internal/auth"
	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/model"
	"github.com/taskdeck/server-go/internal/repository"
)

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (*model.Account, error) {
	args := m.Called(ctx, id, passwordHash, changedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAccountRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAccountRepo) WithTx(tx *sqlx.Tx) repository.AccountRepository {
	return m
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// newTestCredentialService wires a service over mocks and an in-memory reset
// token repo. The nil *database.DB is safe as long as the test never reaches
// the account deletion transaction.
func newTestCredentialService(accountRepo *mockAccountRepo, mailer *mockMailer) (*CredentialService, *memResetTokenRepo, *auth.SessionCodec) {
	resetRepo := newMemResetTokenRepo()
	resetStore := NewResetTokenStore(resetRepo, time.Hour)
	codec := auth.NewSessionCodec("test-secret-for-credential-tests", time.Hour)
	svc := NewCredentialService(
		nil,
		accountRepo,
		nil,
		resetStore,
		resetRepo,
		auth.NewPasswordHasher(bcrypt.MinCost, 2),
		codec,
		mailer,
		"https://app.example.com/reset-password",
	)
	return svc, resetRepo, codec
}

func TestCredentialServiceSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with normalized email", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("Create", ctx, mock.MatchedBy(func(p model.CreateAccountParams) bool {
			return p.Email == "user@example.com" && p.PasswordHash != "secret123"
		})).Return(&model.Account{ID: "acc-1", Email: "user@example.com"}, nil)

		account, err := svc.Signup(ctx, "  USER@Example.COM ", "secret123", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", account.ID)
		accountRepo.AssertExpectations(t)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		svc, _, _ := newTestCredentialService(new(mockAccountRepo), new(mockMailer))

		_, err := svc.Signup(ctx, "", "secret123", "secret123")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))

		_, err = svc.Signup(ctx, "user@example.com", "", "secret123")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("rejects fields shorter than the minimum", func(t *testing.T) {
		svc, _, _ := newTestCredentialService(new(mockAccountRepo), new(mockMailer))

		_, err := svc.Signup(ctx, "user@example.com", "abcd", "abcd")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		svc, _, _ := newTestCredentialService(new(mockAccountRepo), new(mockMailer))

		_, err := svc.Signup(ctx, "not-an-email", "secret123", "secret123")
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects password confirmation mismatch", func(t *testing.T) {
		svc, _, _ := newTestCredentialService(new(mockAccountRepo), new(mockMailer))

		_, err := svc.Signup(ctx, "user@example.com", "secret123", "secret124")
		assert.Equal(t, apperrors.ErrCodePasswordMismatch, apperrors.GetCode(err))
	})

	t.Run("maps duplicate email to conflict", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateEmail)

		_, err := svc.Signup(ctx, "user@example.com", "secret123", "secret123")
		assert.Equal(t, apperrors.ErrCodeDuplicateEmail, apperrors.GetCode(err))
	})
}

func TestCredentialServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a valid session token", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, codec := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByEmail", ctx, "user@example.com").Return(&model.Account{
			ID:           "acc-1",
			Email:        "user@example.com",
			PasswordHash: mustHash(t, "secret123"),
		}, nil)

		result, err := svc.Login(ctx, "User@Example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", result.Account.ID)

		claims, err := codec.Verify(result.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", claims.AccountID)
	})

	t.Run("unknown email and wrong password return the same error", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByEmail", ctx, "missing@example.com").Return(nil, nil)
		accountRepo.On("FindByEmail", ctx, "user@example.com").Return(&model.Account{
			ID:           "acc-1",
			Email:        "user@example.com",
			PasswordHash: mustHash(t, "secret123"),
		}, nil)

		_, errUnknown := svc.Login(ctx, "missing@example.com", "secret123")
		_, errWrong := svc.Login(ctx, "user@example.com", "wrong-password")

		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(errUnknown))
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(errWrong))
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
	})

	t.Run("rejects empty credentials without touching the repository", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		_, err := svc.Login(ctx, "", "")
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(err))
		accountRepo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})
}

func TestCredentialServiceChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the hash and issues a fresh token", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, codec := newTestCredentialService(accountRepo, new(mockMailer))

		account := &model.Account{ID: "acc-1", Email: "user@example.com", PasswordHash: mustHash(t, "old-secret")}
		accountRepo.On("FindByID", ctx, "acc-1").Return(account, nil)
		accountRepo.On("UpdatePassword", ctx, "acc-1", mock.Anything, mock.MatchedBy(func(changedAt time.Time) bool {
			// The stamp must sit slightly in the past so the fresh token
			// is never considered stale.
			return changedAt.Before(time.Now())
		})).Return(account, nil)

		result, err := svc.ChangePassword(ctx, "acc-1", "old-secret", "new-secret", "new-secret")
		require.NoError(t, err)

		claims, err := codec.Verify(result.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", claims.AccountID)
		accountRepo.AssertExpectations(t)
	})

	t.Run("rejects wrong current password", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(&model.Account{
			ID: "acc-1", PasswordHash: mustHash(t, "old-secret"),
		}, nil)

		_, err := svc.ChangePassword(ctx, "acc-1", "not-the-password", "new-secret", "new-secret")
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(err))
	})

	t.Run("rejects confirmation mismatch", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(&model.Account{
			ID: "acc-1", PasswordHash: mustHash(t, "old-secret"),
		}, nil)

		_, err := svc.ChangePassword(ctx, "acc-1", "old-secret", "new-secret", "other-secret")
		assert.Equal(t, apperrors.ErrCodePasswordMismatch, apperrors.GetCode(err))
	})

	t.Run("rejects reusing the current password", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(&model.Account{
			ID: "acc-1", PasswordHash: mustHash(t, "old-secret"),
		}, nil)

		_, err := svc.ChangePassword(ctx, "acc-1", "old-secret", "old-secret", "old-secret")
		assert.Equal(t, apperrors.ErrCodeNoOpChange, apperrors.GetCode(err))
	})

	t.Run("rejects short new password", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(&model.Account{
			ID: "acc-1", PasswordHash: mustHash(t, "old-secret"),
		}, nil)

		_, err := svc.ChangePassword(ctx, "acc-1", "old-secret", "abc", "abc")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})
}

func TestCredentialServiceResetFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("forgot password mails a link carrying the token", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		mailer := new(mockMailer)
		svc, resetRepo, _ := newTestCredentialService(accountRepo, mailer)

		accountRepo.On("FindByEmail", ctx, "user@example.com").Return(&model.Account{
			ID: "acc-1", Email: "user@example.com",
		}, nil)
		mailer.On("Send", "user@example.com", "Reset your password", mock.MatchedBy(func(body string) bool {
			return len(body) > 0
		})).Return(nil)

		result, err := svc.RequestPasswordReset(ctx, "user@example.com")
		require.NoError(t, err)
		assert.True(t, result.EmailDelivered)
		assert.Equal(t, 1, resetRepo.count())
		mailer.AssertExpectations(t)
	})

	t.Run("forgot password for unknown email fails", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByEmail", ctx, "missing@example.com").Return(nil, nil)

		_, err := svc.RequestPasswordReset(ctx, "missing@example.com")
		assert.Equal(t, apperrors.ErrCodeAccountNotFound, apperrors.GetCode(err))
	})

	t.Run("delivery failure keeps the token usable", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		mailer := new(mockMailer)
		svc, resetRepo, _ := newTestCredentialService(accountRepo, mailer)

		accountRepo.On("FindByEmail", ctx, "user@example.com").Return(&model.Account{
			ID: "acc-1", Email: "user@example.com",
		}, nil)
		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused"))

		result, err := svc.RequestPasswordReset(ctx, "user@example.com")
		require.NoError(t, err)
		assert.False(t, result.EmailDelivered)
		assert.Equal(t, 1, resetRepo.count())
	})

	t.Run("complete reset consumes the token and updates the password", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		plaintext, err := svc.resetStore.Issue(ctx, "acc-1")
		require.NoError(t, err)

		accountRepo.On("UpdatePassword", ctx, "acc-1", mock.Anything, mock.Anything).
			Return(&model.Account{ID: "acc-1", Email: "user@example.com"}, nil)

		account, err := svc.CompletePasswordReset(ctx, plaintext, "new-secret", "new-secret")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", account.ID)

		// The token is single-use.
		_, err = svc.CompletePasswordReset(ctx, plaintext, "new-secret", "new-secret")
		assert.Equal(t, apperrors.ErrCodeTokenInvalidOrExpired, apperrors.GetCode(err))
	})

	t.Run("complete reset rejects an unknown token", func(t *testing.T) {
		svc, _, _ := newTestCredentialService(new(mockAccountRepo), new(mockMailer))

		_, err := svc.CompletePasswordReset(ctx, "bogus-token", "new-secret", "new-secret")
		assert.Equal(t, apperrors.ErrCodeTokenInvalidOrExpired, apperrors.GetCode(err))
	})

	t.Run("complete reset validates before consuming", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		plaintext, err := svc.resetStore.Issue(ctx, "acc-1")
		require.NoError(t, err)

		_, err = svc.CompletePasswordReset(ctx, plaintext, "new-secret", "other-secret")
		assert.Equal(t, apperrors.ErrCodePasswordMismatch, apperrors.GetCode(err))

		_, err = svc.CompletePasswordReset(ctx, plaintext, "abc", "abc")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))

		// Validation failures must not burn the token.
		accountRepo.On("UpdatePassword", ctx, "acc-1", mock.Anything, mock.Anything).
			Return(&model.Account{ID: "acc-1"}, nil)
		_, err = svc.CompletePasswordReset(ctx, plaintext, "new-secret", "new-secret")
		require.NoError(t, err)
	})
}

func TestCredentialServiceDeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects wrong password before touching owned data", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(&model.Account{
			ID: "acc-1", PasswordHash: mustHash(t, "secret123"),
		}, nil)

		err := svc.DeleteAccount(ctx, "acc-1", "wrong-password")
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(err))
		accountRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown account", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "ghost").Return(nil, nil)

		err := svc.DeleteAccount(ctx, "ghost", "secret123")
		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(err))
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		accountRepo := new(mockAccountRepo)
		svc, _, _ := newTestCredentialService(accountRepo, new(mockMailer))

		accountRepo.On("FindByID", ctx, "acc-1").Return(nil, fmt.Errorf("connection reset"))

		err := svc.DeleteAccount(ctx, "acc-1", "secret123")
		require.Error(t, err)
		assert.False(t, apperrors.IsAppError(err))
	})
}
