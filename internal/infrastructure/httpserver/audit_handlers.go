package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/httpserver/helpers"
)

// getAuditLogs lists the caller's own audit trail.
func (s *Server) getAuditLogs(c echo.Context) error {
	actorID, err := helpers.GetActorIDFromContext(c)
	if err != nil {
		return err
	}

	var (
		action, outcome, resourceID string
		start, end                  time.Time
		filter                      audit.AuditLogFilter
	)
	err = echo.QueryParamsBinder(c).
		String("action", &action).
		String("outcome", &outcome).
		String("resource_id", &resourceID).
		Time("start_time", &start, time.RFC3339).
		Time("end_time", &end, time.RFC3339).
		Int("limit", &filter.Limit).
		Int("offset", &filter.Offset).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	filter.ActorID = &actorID
	if action != "" {
		op := operation.Name(action)
		filter.Action = &op
	}
	if outcome != "" {
		o := audit.Outcome(outcome)
		if o != audit.OutcomeSuccess && o != audit.OutcomeFailure {
			return echo.NewHTTPError(http.StatusBadRequest, "outcome must be success or failure")
		}
		filter.Outcome = &o
	}
	if resourceID != "" {
		filter.ResourceID = &resourceID
	}
	if !start.IsZero() {
		filter.StartTime = &start
	}
	if !end.IsZero() {
		filter.EndTime = &end
	}

	logs, total, err := s.auditSvc.GetAuditLogs(c.Request().Context(), &filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"logs": logs, "total": total})
}
