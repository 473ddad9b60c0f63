package repository

import (
	"context"
	"database/sql"

	"github.com/avalora/visuals-api/internal/model"
)

// TokenRepo persists email confirmation and password reset tokens. Both
// tables follow the single-active-token discipline: before a new token is
// inserted, all prior rows for the user are deleted in the same
// transaction.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// ReplaceConfirmation deletes any prior confirmation tokens for the user
// and inserts the given one.
func (r *TokenRepo) ReplaceConfirmation(ctx context.Context, t model.EmailConfirmation) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM email_confirmations WHERE user_id=?", t.UserID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO email_confirmations (id, user_id, token, expires_at) VALUES (?,?,?,?)",
		t.ID, t.UserID, t.Token, t.ExpiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetConfirmation looks up a confirmation row by token value. Expiry is
// evaluated by the caller; sql.ErrNoRows means no such token.
func (r *TokenRepo) GetConfirmation(ctx context.Context, token string) (model.EmailConfirmation, error) {
	var t model.EmailConfirmation
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token,expires_at,created_at FROM email_confirmations WHERE token=? LIMIT 1",
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// DeleteConfirmation consumes a confirmation token. A confirmed token is
// removed outright so a second confirmation attempt finds nothing.
func (r *TokenRepo) DeleteConfirmation(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM email_confirmations WHERE id=?", id)
	return err
}

// ReplaceReset deletes any prior reset tokens for the user and inserts the
// given one.
func (r *TokenRepo) ReplaceReset(ctx context.Context, t model.PasswordReset) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM password_resets WHERE user_id=?", t.UserID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO password_resets (id, user_id, token, expires_at, used) VALUES (?,?,?,?,false)",
		t.ID, t.UserID, t.Token, t.ExpiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetReset looks up a reset row by token value. Expiry and the used flag
// are evaluated by the caller.
func (r *TokenRepo) GetReset(ctx context.Context, token string) (model.PasswordReset, error) {
	var t model.PasswordReset
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token,expires_at,used,created_at FROM password_resets WHERE token=? LIMIT 1",
		token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	return t, err
}

// MarkResetUsed flags a reset token as spent. The row is kept (not
// deleted) so a replayed link inside the expiry window still fails.
func (r *TokenRepo) MarkResetUsed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE password_resets SET used=true WHERE id=?", id)
	return err
}
