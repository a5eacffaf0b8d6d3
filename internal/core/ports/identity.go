package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
)

// IdentityService verifies bearer tokens issued by the authentication collaborator.
type IdentityService interface {
	Verify(token string) (*auth.Claims, error)
	Issue(actorID uuid.UUID, role auth.Role, ttl time.Duration) (string, error)
}
