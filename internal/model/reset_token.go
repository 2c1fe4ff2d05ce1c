package model

import (
	"time"
)

// ResetToken stores only the sha256 of the random value mailed to the user;
// the plaintext is never persisted. At most one row exists per account.
type ResetToken struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"accountId"`
	TokenHash string    `db:"token_hash" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (t *ResetToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}

func (t *ResetToken) IsExpired(ttl time.Duration, now time.Time) bool {
	return now.After(t.ExpiresAt(ttl))
}
