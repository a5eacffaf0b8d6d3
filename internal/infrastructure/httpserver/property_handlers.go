package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver/helpers"
)

func (s *Server) registerProperty(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	var req property.RegisterPropertyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.LandlordID = landlordID
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := s.propertySvc.RegisterProperty(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) getProperty(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	propertyID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	p, err := s.propertySvc.GetProperty(c.Request().Context(), landlordID, propertyID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateUnitCapacity(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	propertyID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req property.UpdateUnitCapacityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.LandlordID = landlordID
	req.PropertyID = propertyID
	req.UnitID = c.Param("unit")
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := s.propertySvc.UpdateUnitCapacity(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) removeTenant(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	propertyID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	tenantID, err := helpers.ParseUUIDParam(c, "tenant")
	if err != nil {
		return err
	}
	req := tenancy.RemoveRequest{
		LandlordID: landlordID,
		TenantID:   tenantID,
		PropertyID: propertyID,
		UnitID:     c.Param("unit"),
	}
	if err := s.revocationSvc.Remove(c.Request().Context(), &req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getOwnAssociations(c echo.Context) error {
	tenantID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	a, err := s.propertySvc.GetTenantAssociation(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) getOwnRoster(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	r, err := s.propertySvc.GetLandlordRoster(c.Request().Context(), landlordID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}
