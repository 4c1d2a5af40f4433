package domain

import "time"

// AuthAction enumerates the account operations recorded in the audit trail.
type AuthAction string

const (
	ActionRegister AuthAction = "register"
	ActionLogin    AuthAction = "login"
	ActionRefresh  AuthAction = "refresh"
	ActionLogout   AuthAction = "logout"
)

// AuthEvent is one audit-trail entry describing an authentication attempt.
// AccountID is empty when the attempt never resolved to an account.
type AuthEvent struct {
	AccountID string
	Email     string
	Action    AuthAction
	Success   bool
	IP        string
	UserAgent string
	At        time.Time
}
