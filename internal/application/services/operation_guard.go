package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/utils"
)

// OperationDeps are the collaborators every engine operation goes through:
// validate, rate limit, run, then audit and measure the outcome.
type OperationDeps struct {
	Validator   *validator.Validate
	RateLimiter ports.RateLimiterService
	Audit       ports.AuditService
	Metrics     ports.OperationMetrics
	Clock       ports.Clock
	Logger      *logrus.Logger
}

type operationGuard struct {
	validator   *validator.Validate
	rateLimiter ports.RateLimiterService
	audit       ports.AuditService
	metrics     ports.OperationMetrics
	clock       ports.Clock
	logger      *logrus.Logger
}

func newOperationGuard(d OperationDeps) operationGuard {
	g := operationGuard{
		validator:   d.Validator,
		rateLimiter: d.RateLimiter,
		audit:       d.Audit,
		metrics:     d.Metrics,
		clock:       d.Clock,
		logger:      d.Logger,
	}
	if g.validator == nil {
		g.validator = utils.NewValidator()
	}
	if g.metrics == nil {
		g.metrics = ports.NoopMetrics{}
	}
	if g.clock == nil {
		g.clock = ports.SystemClock{}
	}
	return g
}

// auditEntry describes the subject of one operation for the audit trail.
type auditEntry struct {
	actor      uuid.UUID
	op         operation.Name
	resource   audit.AuditResource
	resourceID string
	details    map[string]any
}

func (g *operationGuard) validate(req any) error {
	if err := g.validator.Struct(req); err != nil {
		return apperr.ErrInvalidRequest.WithMessage("%s", utils.ValidationMessage(err))
	}
	return nil
}

// admit consumes one call from the actor's budget. Limiter storage errors fail open.
func (g *operationGuard) admit(ctx context.Context, actorID uuid.UUID, op operation.Name) error {
	if g.rateLimiter == nil {
		return nil
	}
	decision, err := g.rateLimiter.Allow(ctx, actorID, op)
	if err != nil || decision.Allowed {
		return nil
	}
	return apperr.RateLimited(decision.RetryAfter(g.clock.Now()))
}

// record appends the outcome to the audit log and metrics. Audit failures are logged only.
func (g *operationGuard) record(ctx context.Context, e auditEntry, started time.Time, err error) {
	outcome := audit.OutcomeSuccess
	label := string(audit.OutcomeSuccess)
	if err != nil {
		outcome = audit.OutcomeFailure
		label = strings.ToLower(apperr.CodeOf(err))
	}
	g.metrics.ObserveOperation(e.op, label, g.clock.Now().Sub(started))

	if err != nil && g.logger != nil {
		entry := g.logger.WithFields(logrus.Fields{"operation": e.op, "actor_id": e.actor, "resource_id": e.resourceID})
		if apperr.KindOf(err) == apperr.KindInternal {
			entry.WithError(err).Error("operation failed")
		} else {
			entry.WithField("reason", apperr.CodeOf(err)).Info("operation rejected")
		}
	}

	if g.audit == nil {
		return
	}
	req := &audit.CreateAuditLogRequest{
		ActorID:    e.actor,
		Action:     e.op,
		Resource:   e.resource,
		ResourceID: e.resourceID,
		Outcome:    outcome,
		Reason:     apperr.CodeOf(err),
		Details:    e.details,
	}
	// the caller may already be past its deadline; the outcome still has to be recorded
	if aerr := g.audit.LogAction(context.WithoutCancel(ctx), req); aerr != nil && g.logger != nil {
		g.logger.WithFields(logrus.Fields{"operation": e.op, "actor_id": e.actor}).WithError(aerr).Error("failed to append audit entry")
	}
}
