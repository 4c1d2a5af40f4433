package ports

import (
	"context"

	"github.com/arkind/identity-api/internal/core/domain"
)

// AccountRepository is the persistence contract for accounts and the
// per-account refresh token slot.
type AccountRepository interface {
	// Create inserts a new account. A duplicate email yields
	// domain.ErrAccountExists.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)

	// FindByEmail returns the account for the given email, or
	// domain.ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)

	// FindByID returns the account for the given id, or
	// domain.ErrAccountNotFound.
	FindByID(ctx context.Context, id string) (*domain.Account, error)

	// SetRefreshToken unconditionally stores token as the account's current
	// refresh token. The login path uses it; the last login wins.
	SetRefreshToken(ctx context.Context, id, token string) error

	// SwapRefreshToken replaces the stored refresh token with next only if the
	// slot still holds expected at write time, as a single atomic operation.
	// It reports whether the swap happened; false means the expected token was
	// already superseded by a concurrent rotation, a login, or a logout.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)

	// ClearRefreshToken empties the slot, ending the account's session.
	ClearRefreshToken(ctx context.Context, id string) error
}
