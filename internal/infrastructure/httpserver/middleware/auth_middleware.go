package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver/helpers"
)

type JWTMiddleware struct {
	identity ports.IdentityService
	logger   *logrus.Logger
}

func NewJWTMiddleware(identity ports.IdentityService, logger *logrus.Logger) *JWTMiddleware {
	return &JWTMiddleware{identity: identity, logger: logger}
}

// RequireJWT verifies the bearer token and sets the actor on the context.
func (m *JWTMiddleware) RequireJWT() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := helpers.GetBearerToken(c)
			if err != nil {
				return err
			}

			claims, err := m.identity.Verify(tokenString)
			if err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path, "error": err.Error()}).Warn("JWT validation failed")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			helpers.SetIdentity(c, auth.Identity{ActorID: claims.ActorID, Role: claims.Role})

			if m.logger != nil {
				m.logger.WithFields(logrus.Fields{"actor_id": claims.ActorID, "role": claims.Role}).Debug("jwt validated and actor context set")
			}
			return next(c)
		}
	}
}

// RequireRole rejects actors whose verified role is not one of roles.
func (m *JWTMiddleware) RequireRole(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, err := helpers.GetActorRoleFromContext(c)
			if err != nil {
				return err
			}
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+string(role)+" may not perform this action")
			}
			return next(c)
		}
	}
}
