package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arkind/identity-api/internal/core/domain"
)

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Insert(ctx context.Context, event *domain.AuthEvent) error {
	const query = `
		INSERT INTO auth_events (account_id, email, action, success, ip, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		nullable(event.AccountID),
		nullable(event.Email),
		string(event.Action),
		event.Success,
		nullable(event.IP),
		nullable(event.UserAgent),
		event.At,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
