package helpers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
)

func GetActorIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := GetActorIDRaw(c)
	if !ok || id == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid actor context")
	}
	return id, nil
}

func GetActorRoleFromContext(c echo.Context) (auth.Role, error) {
	r, ok := GetActorRoleRaw(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid role context")
	}
	return r, nil
}

func GetIdentityFromContext(c echo.Context) (auth.Identity, error) {
	id, err := GetActorIDFromContext(c)
	if err != nil {
		return auth.Identity{}, err
	}
	role, err := GetActorRoleFromContext(c)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ActorID: id, Role: role}, nil
}

// GetBearerToken extracts the token from an "Authorization: Bearer <token>" header.
func GetBearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// ParseUUIDParam reads a path parameter as a uuid.
func ParseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
