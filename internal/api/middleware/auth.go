package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/arkind/identity-api/internal/core/domain"
	"github.com/arkind/identity-api/internal/token"
)

// IdentityKey is the echo context key the authenticated identity is stored
// under by Authenticate.
const IdentityKey = "auth.identity"

// Identity is the request-scoped principal extracted from a verified access
// token.
type Identity struct {
	AccountID string
	Name      string
	Role      domain.Role
}

// Authenticate verifies the bearer access token and injects the caller's
// identity into the request context. Missing, malformed, expired and forged
// tokens are all rejected before any handler logic runs.
func Authenticate(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return domain.ErrTokenInvalid
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return domain.ErrTokenInvalid
			}

			claims, err := codec.Verify(parts[1])
			if err != nil {
				return err
			}

			c.Set(IdentityKey, Identity{
				AccountID: claims.Subject,
				Name:      claims.Name,
				Role:      claims.Role,
			})

			return next(c)
		}
	}
}

// CurrentIdentity returns the identity stored by Authenticate, reporting
// whether one is present.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(IdentityKey).(Identity)
	return identity, ok
}
