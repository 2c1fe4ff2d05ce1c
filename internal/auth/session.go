package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("session token signature invalid")
	ErrTokenExpired     = errors.New("session token expired")
)

// SessionClaims is the verified payload of a session token.
type SessionClaims struct {
	AccountID string
	IssuedAt  time.Time
}

// SessionCodec issues and verifies stateless HS256-signed session tokens.
// Revocation on password change is not this component's job: it only proves
// the token was issued by this server and has not outlived its lifetime.
// Comparing IssuedAt against the account's password_changed_at belongs to the
// session guard.
type SessionCodec struct {
	secret   []byte
	lifetime time.Duration
}

func NewSessionCodec(secret string, lifetime time.Duration) *SessionCodec {
	return &SessionCodec{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

func (c *SessionCodec) Lifetime() time.Duration {
	return c.lifetime
}

// Issue creates a token embedding the account id and issuance time, expiring
// after the configured lifetime.
func (c *SessionCodec) Issue(accountID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// It is pure: no state is consulted beyond the token itself.
func (c *SessionCodec) Verify(tokenString string) (*SessionClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}

	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidSignature
	}

	return &SessionClaims{
		AccountID: claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
	}, nil
}
