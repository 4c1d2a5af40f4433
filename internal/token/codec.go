// Package token signs and verifies the JWTs that carry session state. Both
// access and refresh tokens share one claim shape and one signing key; they
// differ only in lifetime.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arkind/identity-api/internal/core/domain"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the signed claim set. The subject is the account id; name and
// role ride along so the API can authorize without a store lookup.
type Claims struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Codec mints and verifies tokens. It is stateless: validity is a pure
// function of the signing secret and the clock.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec builds a Codec signing with HMAC-SHA256. Non-positive lifetimes
// fall back to 15 minutes for access tokens and 7 days for refresh tokens.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &Codec{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess mints a short-lived access token for the account.
func (c *Codec) IssueAccess(account *domain.Account) (string, error) {
	return c.issue(account, c.accessTTL)
}

// IssueRefresh mints a refresh token. The jti claim makes every token unique,
// so a rotated token never equals its predecessor even when both are minted
// within the same second.
func (c *Codec) IssueRefresh(account *domain.Account) (string, error) {
	return c.issue(account, c.refreshTTL)
}

func (c *Codec) issue(account *domain.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: account.Name,
		Role: account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// Malformed, forged and expired tokens all come back as domain.ErrTokenInvalid
// so callers cannot leak which check failed.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrTokenInvalid)
	}
	return claims, nil
}

// IsStillValid reports whether a previously issued token still verifies. It
// exists so callers choosing between reusing and reissuing a token branch on
// a boolean instead of inspecting an error.
func (c *Codec) IsStillValid(tokenString string) bool {
	_, err := c.Verify(tokenString)
	return err == nil
}
