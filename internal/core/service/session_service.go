package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/core/ports"
	"github.com/arkind/identity-api/internal/security"
	"github.com/arkind/identity-api/internal/token"
)

// SessionService implements registration and the session lifecycle. It owns
// the invariant that an account holds at most one valid refresh token: login
// writes the slot, rotation swaps it conditionally, logout clears it.
type SessionService struct {
	accounts ports.AccountRepository
	codec    *token.Codec
	log      zerolog.Logger
}

// NewSessionService wires the service to its account store and token codec.
func NewSessionService(accounts ports.AccountRepository, codec *token.Codec, log zerolog.Logger) *SessionService {
	return &SessionService{
		accounts: accounts,
		codec:    codec,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// Register creates an account with the USER role and an empty refresh slot.
// Duplicate emails surface as domain.ErrAccountExists from the store's
// uniqueness guarantee; there is no read-then-write check here.
func (s *SessionService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Account, error) {
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", created.ID).Msg("account registered")
	return created, nil
}

// Login verifies credentials and opens a session. Unknown emails and wrong
// passwords both collapse into domain.ErrInvalidCredentials; the distinction
// is logged but never returned.
func (s *SessionService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	account, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.log.Warn().Str("email", email).Msg("login attempt for unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if !security.VerifyPassword(password, account.PasswordHash) {
		s.log.Warn().Str("account_id", account.ID).Msg("login attempt with wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	access, err := s.codec.IssueAccess(account)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	// Repeated logins keep an existing session window alive: the stored
	// refresh token is reused while it still verifies, minted fresh otherwise.
	refresh := account.RefreshToken
	if refresh == "" || !s.codec.IsStillValid(refresh) {
		refresh, err = s.codec.IssueRefresh(account)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
	}

	if err := s.accounts.SetRefreshToken(ctx, account.ID, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	account.RefreshToken = refresh

	s.log.Info().Str("account_id", account.ID).Msg("login succeeded")
	return &ports.LoginResult{Account: account, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates a refresh token. Both tokens are minted fresh and the
// stored slot is swapped only if it still holds the presented value at write
// time; a failed swap means the token was already superseded by a replay,
// logout or concurrent rotation and is reported exactly like an invalid one.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*ports.TokenPair, error) {
	claims, err := s.codec.Verify(presented)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.log.Warn().Str("account_id", claims.Subject).Msg("refresh token for unknown account")
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("refresh lookup: %w", err)
	}

	access, err := s.codec.IssueAccess(account)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	next, err := s.codec.IssueRefresh(account)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	swapped, err := s.accounts.SwapRefreshToken(ctx, account.ID, presented, next)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		s.log.Warn().Str("account_id", account.ID).Msg("refresh token already superseded")
		return nil, domain.ErrTokenInvalid
	}

	return &ports.TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout clears the account's refresh slot, ending its session everywhere.
// Access tokens already issued stay valid until they expire.
func (s *SessionService) Logout(ctx context.Context, accountID string) error {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return err
	}
	if err := s.accounts.ClearRefreshToken(ctx, accountID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.log.Info().Str("account_id", accountID).Msg("session terminated")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
