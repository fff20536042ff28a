package store

import (
	"context"
	"database/sql"

	"github.com/HadichaRaxmat/online-market-api/internal/models"

	"github.com/shopspring/decimal"
)

// CreateUser inserts a new account row.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, balance, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, user, query,
		user.Email, user.PasswordHash, user.Balance, user.IsActive)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UserByEmail retrieves a user by email (case-insensitive).
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE lower(email) = lower($1)", email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByID retrieves a user by ID
func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates profile fields; balance is not touched here.
func (s *Store) UpdateUser(ctx context.Context, id int64, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = $1, password_hash = $2 WHERE id = $3",
		email, passwordHash, id)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// CreateVerification inserts an email verification code row.
func (s *Store) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	query := `
		INSERT INTO email_verifications (user_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, v, query, v.UserID, v.Code, v.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// UserForUpdate locks the user row for balance mutation.
func (t *sqlTx) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := t.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChargeBalance debits the balance, guarded so it can never go negative
// even if two charges race on the same row.
func (t *sqlTx) ChargeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1",
		amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// DepositBalance credits the balance.
func (t *sqlTx) DepositBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE users SET balance = balance + $1 WHERE id = $2",
		amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// VerificationByCode retrieves a verification row by its code.
func (t *sqlTx) VerificationByCode(ctx context.Context, code string) (*models.EmailVerification, error) {
	var v models.EmailVerification
	err := t.tx.GetContext(ctx, &v, "SELECT * FROM email_verifications WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ActivateUser flips the account to active.
func (t *sqlTx) ActivateUser(ctx context.Context, userID int64) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE users SET is_active = TRUE WHERE id = $1", userID)
	return err
}

// DeleteVerification removes a consumed verification code.
func (t *sqlTx) DeleteVerification(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM email_verifications WHERE id = $1", id)
	return err
}
