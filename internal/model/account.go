package model

import (
	"time"
)

// Account is a registered user. PasswordHash never serializes to callers and
// PasswordChangedAt stays nil until the first password mutation after signup,
// which means "never invalidated" to the session guard.
type Account struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	PasswordChangedAt *time.Time `db:"password_changed_at" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreateAccountParams struct {
	Email        string
	PasswordHash string
}
