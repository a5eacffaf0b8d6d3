package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver/helpers"
)

// createInviteCodeBody is the optional JSON body of a create-code request.
type createInviteCodeBody struct {
	TTLSeconds     *int64 `json:"ttl_seconds" validate:"omitempty,min=0,max=2592000"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
}

func (s *Server) createInviteCode(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	propertyID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var body createInviteCodeBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	req := invite.CreateCodeRequest{
		LandlordID:     landlordID,
		PropertyID:     propertyID,
		UnitID:         c.Param("unit"),
		TTLSeconds:     int64(s.config.DefaultInviteTTL.Seconds()),
		RecipientEmail: body.RecipientEmail,
	}
	if body.TTLSeconds != nil {
		req.TTLSeconds = *body.TTLSeconds
	}
	code, err := s.inviteSvc.CreateCode(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, code)
}

func (s *Server) listInviteCodes(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	propertyID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	codes, err := s.inviteSvc.ListCodes(c.Request().Context(), landlordID, propertyID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"codes": codes, "total": len(codes)})
}

func (s *Server) validateInviteCode(c echo.Context) error {
	actorID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	summary, err := s.inviteSvc.Validate(c.Request().Context(), &invite.ValidateRequest{
		ActorID: actorID,
		Code:    c.Param("code"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) redeemInviteCode(c echo.Context) error {
	tenantID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	result, err := s.inviteSvc.Redeem(c.Request().Context(), &invite.RedeemRequest{
		Code:     c.Param("code"),
		TenantID: tenantID,
	})
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

func (s *Server) revokeInviteCode(c echo.Context) error {
	landlordID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}
	code, err := s.inviteSvc.RevokeCode(c.Request().Context(), &invite.RevokeCodeRequest{
		LandlordID: landlordID,
		Code:       c.Param("code"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, code)
}
