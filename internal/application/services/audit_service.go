package services

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

type AuditService struct {
	repo    ports.AuditRepository
	clock   ports.Clock
	logger  *logrus.Logger
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewAuditService(repo ports.AuditRepository, clock ports.Clock, logger *logrus.Logger) *AuditService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &AuditService{
		repo:    repo,
		clock:   clock,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *AuditService) newID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(s.clock.Now()), s.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *AuditService) LogAction(ctx context.Context, req *audit.CreateAuditLogRequest) error {
	id, err := s.newID()
	if err != nil {
		return err
	}
	auditLog := &audit.AuditLog{
		ID:         id,
		ActorID:    req.ActorID,
		Action:     string(req.Action),
		Resource:   string(req.Resource),
		ResourceID: req.ResourceID,
		Outcome:    req.Outcome,
		Reason:     req.Reason,
		Details:    req.Details,
		Timestamp:  s.clock.Now().UTC(),
	}

	if err := s.repo.Create(ctx, auditLog); err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"actor_id": req.ActorID, "action": req.Action, "resource": req.Resource}).WithError(err).Error("failed to persist audit log")
		}
		return err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"actor_id": req.ActorID, "action": req.Action, "resource": req.Resource, "resource_id": req.ResourceID, "outcome": req.Outcome}).Debug("audit log persisted")
	}
	return nil
}

func (s *AuditService) GetAuditLogs(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error) {
	if filter == nil {
		filter = &audit.AuditLogFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPageSize
	}
	if filter.Limit > maxAuditPageSize {
		filter.Limit = maxAuditPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
