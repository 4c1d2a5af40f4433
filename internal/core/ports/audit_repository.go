package ports

import (
	"context"

	"github.com/arkind/identity-api/internal/core/domain"
)

// AuditRepository persists authentication audit events. Writes are
// best-effort; a failed insert must not affect the request that produced it.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuthEvent) error
}
