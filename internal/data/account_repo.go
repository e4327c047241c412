package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/campus-portal/internal/data/pgxutil"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

var (
	// ErrAccountNotFound is returned when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when the email already has an account.
	ErrAccountExists = errors.New("account already exists")
)

// AccountRepo stores local credentials.
type AccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// Create inserts an account for email with an already-hashed password.
func (r *AccountRepo) Create(ctx context.Context, email, passwordHash string) (*model.Account, error) {
	if passwordHash == "" {
		return nil, errors.New("password hash is required")
	}
	var out model.Account
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO accounts (email, password_hash, created_at)
			VALUES ($1, $2, $3)
			RETURNING id::text AS id, email, password_hash, created_at`,
			model.NormalizeEmail(email), passwordHash, r.timeProvider.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Account])
		return err
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(apperrors.MapDBError(err), &appErr) && appErr.Code == apperrors.ErrCodeConflict {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &out, nil
}

// GetByEmail returns the account for email (case-insensitive).
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var out model.Account
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id::text AS id, email, password_hash, created_at
			FROM accounts WHERE lower(email) = $1`, model.NormalizeEmail(email))
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Account])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &out, nil
}

// UpdatePassword replaces the stored hash.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
