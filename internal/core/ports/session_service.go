package ports

import (
	"context"

	"github.com/arkind/identity-api/internal/core/domain"
)

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginResult bundles everything a successful login produces. The refresh
// token travels out of band (a cookie), never in a response body.
type LoginResult struct {
	Account      *domain.Account
	AccessToken  string
	RefreshToken string
}

// TokenPair is the product of one refresh token rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService owns account registration and the session lifecycle:
// credential verification, token issuance, refresh rotation and termination.
type SessionService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, presented string) (*TokenPair, error)
	Logout(ctx context.Context, accountID string) error
}
