package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arkind/identity-api/internal/core/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	const query = `
		INSERT INTO accounts (id, email, name, password_hash, role, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Name,
		account.PasswordHash,
		string(account.Role),
		nullable(account.RefreshToken),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	query := `
		SELECT id, email, name, password_hash, role, refresh_token, created_at, updated_at
		FROM accounts
		WHERE ` + where

	var (
		account domain.Account
		refresh sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&account.Role,
		&refresh,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.RefreshToken = refresh.String
	return &account, nil
}

func (r *PostgresAccountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	const query = `UPDATE accounts SET refresh_token = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, nullable(token))
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return oneRowOr(res, domain.ErrAccountNotFound)
}

// SwapRefreshToken compares and swaps in a single UPDATE; row visibility
// rules make concurrent swaps of the same token serialize so that at most
// one statement reports an affected row.
func (r *PostgresAccountRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	const query = `UPDATE accounts SET refresh_token = $3, updated_at = now() WHERE id = $1 AND refresh_token = $2`

	res, err := r.db.ExecContext(ctx, query, id, expected, nullable(next))
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return rows == 1, nil
}

func (r *PostgresAccountRepository) ClearRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE accounts SET refresh_token = NULL, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return oneRowOr(res, domain.ErrAccountNotFound)
}

func oneRowOr(res sql.Result, missing error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}

// nullable maps the empty string to NULL so "no refresh token" is stored the
// same way the schema default leaves it.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
