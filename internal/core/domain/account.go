package domain

import "time"

// Role is the authorization tier of an account. The set is closed; anything
// outside these three values is rejected at the boundary where it appears.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

// In reports whether r is a member of the given role set.
func (r Role) In(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// Account models a registered principal.
//
// RefreshToken holds the single refresh token currently considered valid for
// this account; empty means logged out. Overwriting the slot is what
// invalidates the previous token; there is no revocation list.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
