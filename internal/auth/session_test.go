package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCodec(t *testing.T) {
	codec := NewSessionCodec("test-session-secret", 72*time.Hour)

	t.Run("issue and verify round trip", func(t *testing.T) {
		before := time.Now().Truncate(time.Second)
		token, err := codec.Issue("account-1")
		require.NoError(t, err)
		after := time.Now().Add(time.Second)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "account-1", claims.AccountID)
		assert.False(t, claims.IssuedAt.Before(before))
		assert.False(t, claims.IssuedAt.After(after))
	})

	t.Run("rejects token signed with different secret", func(t *testing.T) {
		other := NewSessionCodec("another-secret", 72*time.Hour)
		token, err := other.Issue("account-1")
		require.NoError(t, err)

		_, err = codec.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects tampered token", func(t *testing.T) {
		token, err := codec.Issue("account-1")
		require.NoError(t, err)

		tampered := token[:len(token)-2] + "xx"
		_, err = codec.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := codec.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSignature)

		_, err = codec.Verify("")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		shortLived := NewSessionCodec("test-session-secret", -time.Minute)
		token, err := shortLived.Issue("account-1")
		require.NoError(t, err)

		_, err = codec.Verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("lifetime is exposed for cookie max age", func(t *testing.T) {
		assert.Equal(t, 72*time.Hour, codec.Lifetime())
	})
}
