package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the kind of actor the identity provider vouches for.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
)

func (r Role) IsValid() bool {
	return r == RoleLandlord || r == RoleTenant
}

// Claims represents the verified identity carried by a bearer token.
// The engine trusts these claims and performs no credential checks of its own.
type Claims struct {
	ActorID uuid.UUID `json:"actor_id"`
	Role    Role      `json:"role"`

	jwt.RegisteredClaims
}

// Identity is the actor attached to a request after token verification.
type Identity struct {
	ActorID uuid.UUID
	Role    Role
}
