package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// ExpirySweeperService moves Active codes past their expiry to Expired. Redeem and Validate
// already treat such codes as expired; the sweep only makes the stored state catch up.
type ExpirySweeperService struct {
	operationGuard
	tx       *TransactionCoordinator
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExpirySweeperService(tx *TransactionCoordinator, deps OperationDeps, interval time.Duration) *ExpirySweeperService {
	return &ExpirySweeperService{
		operationGuard: newOperationGuard(deps),
		tx:             tx,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// SweepOnce expires every overdue Active code and returns how many it changed.
func (s *ExpirySweeperService) SweepOnce(ctx context.Context) (int, error) {
	docs, err := s.tx.Store().List(ctx, ports.KindInvite)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	expired := 0
	for _, d := range docs {
		c, err := decodeInvite(d)
		if err != nil {
			if s.logger != nil {
				s.logger.WithField("key", d.Key.String()).WithError(err).Warn("sweeper: skipping undecodable invite")
			}
			continue
		}
		if c.Status != invite.StatusActive || !c.ExpiredAt(now) {
			continue
		}
		changed, err := s.expire(ctx, c.Code)
		if err != nil {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

func (s *ExpirySweeperService) expire(ctx context.Context, code string) (changed bool, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: audit.SystemActor, op: operation.ExpireCode, resource: audit.ResourceInvite, resourceID: code}
	defer func() {
		if changed || err != nil {
			s.record(ctx, entry, started, err)
		}
	}()

	err = s.tx.Run(ctx, operation.ExpireCode, func(ctx context.Context, tx *Tx) error {
		changed = false
		now := s.clock.Now().UTC()
		c, err := tx.GetInvite(ctx, code)
		if err != nil {
			return err
		}
		// redeemed or revoked since the listing
		if c.Status != invite.StatusActive || !c.ExpiredAt(now) {
			return nil
		}
		if err := c.Expire(now); err != nil {
			return apperr.ErrInternal.Wrap(err)
		}
		changed = true
		return tx.PutInvite(c)
	})
	return changed, err
}

// Start runs SweepOnce every interval until Stop. A non-positive interval disables the loop.
// A stopped sweeper cannot be restarted.
func (s *ExpirySweeperService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval <= 0 || s.started || s.stopped {
		return
	}
	s.started = true
	go s.run()
	if s.logger != nil {
		s.logger.WithField("interval", s.interval.String()).Info("expiry sweeper started")
	}
}

// Stop blocks until an in-progress sweep has finished. Safe to call more than once.
func (s *ExpirySweeperService) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	if s.logger != nil {
		s.logger.Info("expiry sweeper stopped")
	}
}

func (s *ExpirySweeperService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			n, err := s.SweepOnce(ctx)
			cancel()
			if s.logger == nil {
				continue
			}
			if err != nil {
				s.logger.WithError(err).Error("expiry sweep failed")
			} else if n > 0 {
				s.logger.WithFields(logrus.Fields{"expired": n}).Info("expiry sweep completed")
			}
		case <-s.stopCh:
			return
		}
	}
}
