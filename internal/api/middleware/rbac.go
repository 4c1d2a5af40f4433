package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/arkind/identity-api/internal/core/domain"
)

// RequireRoles enforces role-based access control with OR semantics: the
// caller's role must be one of the given roles. It must run after
// Authenticate. A request that reaches it without an identity is treated as
// unauthenticated rather than forbidden.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := CurrentIdentity(c)
			if !ok {
				return domain.ErrTokenInvalid
			}
			if !identity.Role.In(roles...) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
