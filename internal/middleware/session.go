package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/audit"
	"github.com/taskdeck/server-go/internal/auth"
	apperrors "github.com/taskdeck/server-go/internal/errors"
	"github.com/taskdeck/server-go/internal/model"
	"github.com/taskdeck/server-go/internal/repository"
)

type contextKey string

const AccountContextKey contextKey = "account"

const SessionCookieName = "session"

func GetAccount(ctx context.Context) *model.Account {
	if account, ok := ctx.Value(AccountContextKey).(*model.Account); ok {
		return account
	}
	return nil
}

// SessionGuard authenticates requests from a stateless session token.
// The pipeline is linear: missing token, bad signature, expired token, and
// unknown account all reject with Unauthenticated; a token issued before the
// account's last password change rejects with StaleSession. It never mutates
// state.
type SessionGuard struct {
	codec       *auth.SessionCodec
	accountRepo repository.AccountRepository
}

func NewSessionGuard(codec *auth.SessionCodec, accountRepo repository.AccountRepository) *SessionGuard {
	return &SessionGuard{codec: codec, accountRepo: accountRepo}
}

func (g *SessionGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractSessionToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthenticated("Sign in before accessing this route"))
			return
		}

		claims, err := g.codec.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, apperrors.Unauthenticated("Session is invalid or expired"))
			return
		}

		account, err := g.accountRepo.FindByID(r.Context(), claims.AccountID)
		if err != nil {
			log.Error().Err(err).Msg("session guard: database error")
			writeError(w, apperrors.Internal("Authentication failed"))
			return
		}
		if account == nil {
			writeError(w, apperrors.Unauthenticated("Session is invalid or expired"))
			return
		}

		if isStale(claims, account) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventStaleSession, AccountID: account.ID})
			writeError(w, apperrors.StaleSession())
			return
		}

		ctx := context.WithValue(r.Context(), AccountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isStale reports whether the token predates the account's last password
// change. Accounts that never changed their password have no change stamp
// and invalidate nothing.
func isStale(claims *auth.SessionClaims, account *model.Account) bool {
	if account.PasswordChangedAt == nil {
		return false
	}
	// JWT iat has second precision; truncate the stamp the same way so the
	// comparison is not biased by sub-second noise.
	return claims.IssuedAt.Before(account.PasswordChangedAt.Truncate(time.Second))
}

func extractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// SetSessionCookie hands the session token to the client with an expiry
// matching the token's own lifetime.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
