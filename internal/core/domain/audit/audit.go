package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
)

// SystemActor is recorded for actions taken by background jobs.
var SystemActor = uuid.Nil

type AuditLog struct {
	ID         string         `json:"id" db:"id"`
	ActorID    uuid.UUID      `json:"actor_id" db:"actor_id"`
	Action     string         `json:"action" db:"action"`
	Resource   string         `json:"resource" db:"resource"`
	ResourceID string         `json:"resource_id" db:"resource_id"`
	Outcome    Outcome        `json:"outcome" db:"outcome"`
	Reason     string         `json:"reason,omitempty" db:"reason"`
	Details    map[string]any `json:"details,omitempty" db:"details"`
	Timestamp  time.Time      `json:"timestamp" db:"timestamp"`
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

type AuditResource string

const (
	ResourceInvite    AuditResource = "invite_code"
	ResourceUnit      AuditResource = "unit"
	ResourceProperty  AuditResource = "property"
	ResourcePlacement AuditResource = "placement"
)

// CreateAuditLogRequest represents the request to create an audit log entry
type CreateAuditLogRequest struct {
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     operation.Name `json:"action"`
	Resource   AuditResource  `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Outcome    Outcome        `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// AuditLogFilter represents filters for querying audit logs
type AuditLogFilter struct {
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" query:"-"`
	Action     *operation.Name `json:"action,omitempty" query:"action"`
	Outcome    *Outcome        `json:"outcome,omitempty" query:"outcome"`
	ResourceID *string         `json:"resource_id,omitempty" query:"resource_id"`
	StartTime  *time.Time      `json:"start_time,omitempty" query:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty" query:"end_time"`
	Limit      int             `json:"limit" query:"limit"`
	Offset     int             `json:"offset" query:"offset"`
}
