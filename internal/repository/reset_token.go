package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/taskdeck/server-go/internal/model"
)

type ResetTokenRepository interface {
	// Replace atomically supersedes any existing token for the account.
	// The upsert keyed by account id keeps the single-live-token invariant
	// even under concurrent forgot-password requests.
	Replace(ctx context.Context, accountID, tokenHash string) (*model.ResetToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.ResetToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccountID(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ResetTokenRepository
}

type resetTokenRepo struct {
	db sqlxDB
}

func NewResetTokenRepository(db *sqlx.DB) ResetTokenRepository {
	return &resetTokenRepo{db: db}
}

func (r *resetTokenRepo) WithTx(tx *sqlx.Tx) ResetTokenRepository {
	return &resetTokenRepo{db: tx}
}

func (r *resetTokenRepo) Replace(ctx context.Context, accountID, tokenHash string) (*model.ResetToken, error) {
	var token model.ResetToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO reset_tokens (id, account_id, token_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			created_at = EXCLUDED.created_at
		RETURNING *
	`, uuid.NewString(), accountID, tokenHash, time.Now())
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *resetTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.ResetToken, error) {
	var token model.ResetToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM reset_tokens WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&token, err)
}

func (r *resetTokenRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE id = $1`, id)
	return err
}

func (r *resetTokenRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE account_id = $1`, accountID)
	return err
}

func (r *resetTokenRepo) DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM reset_tokens WHERE created_at < $1
	`, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
