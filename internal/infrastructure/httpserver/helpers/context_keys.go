package helpers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
)

type ctxKey string

const (
	keyActorID   ctxKey = "actor_id"
	keyActorRole ctxKey = "actor_role"
)

func SetActorID(c echo.Context, id uuid.UUID) { c.Set(string(keyActorID), id) }
func GetActorIDRaw(c echo.Context) (uuid.UUID, bool) {
	v := c.Get(string(keyActorID))
	id, ok := v.(uuid.UUID)
	return id, ok
}

func SetActorRole(c echo.Context, r auth.Role) { c.Set(string(keyActorRole), r) }
func GetActorRoleRaw(c echo.Context) (auth.Role, bool) {
	v := c.Get(string(keyActorRole))
	r, ok := v.(auth.Role)
	return r, ok
}

// SetIdentity stores the verified actor on the request context.
func SetIdentity(c echo.Context, id auth.Identity) {
	SetActorID(c, id.ActorID)
	SetActorRole(c, id.Role)
}
