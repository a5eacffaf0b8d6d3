package httpserver

import (
	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	protected := api.Group("")
	protected.Use(s.middleware.JWT.RequireJWT())

	landlord := s.middleware.JWT.RequireRole(auth.RoleLandlord)
	tenant := s.middleware.JWT.RequireRole(auth.RoleTenant)

	properties := protected.Group("/properties")
	properties.POST("", s.registerProperty, landlord)
	properties.GET("/:id", s.getProperty, landlord)
	properties.PUT("/:id/units/:unit/capacity", s.updateUnitCapacity, landlord)
	properties.POST("/:id/units/:unit/invites", s.createInviteCode, landlord)
	properties.GET("/:id/invites", s.listInviteCodes, landlord)
	properties.DELETE("/:id/units/:unit/tenants/:tenant", s.removeTenant, landlord)

	invites := protected.Group("/invites")
	invites.GET("/:code", s.validateInviteCode)
	invites.POST("/:code/redeem", s.redeemInviteCode, tenant)
	invites.DELETE("/:code", s.revokeInviteCode, landlord)

	me := protected.Group("/me")
	me.GET("/associations", s.getOwnAssociations, tenant)
	me.GET("/roster", s.getOwnRoster, landlord)

	protected.GET("/audit/logs", s.getAuditLogs)
}
