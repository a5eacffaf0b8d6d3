package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// RatePolicy is the fixed-window budget for one operation.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimiterService implements per-actor, per-operation fixed-window limits.
type RateLimiterService struct {
	repo      ports.RateLimitRepository
	clock     ports.Clock
	policies  map[operation.Name]RatePolicy
	fallback  RatePolicy
	keyPrefix string
	logger    *logrus.Logger
}

// RateLimiterConfig groups configuration parameters for the rate limiter.
type RateLimiterConfig struct {
	Policies  map[operation.Name]RatePolicy
	Default   RatePolicy
	KeyPrefix string
}

// DefaultRatePolicies are the hourly budgets used when configuration leaves an operation unset.
func DefaultRatePolicies() map[operation.Name]RatePolicy {
	return map[operation.Name]RatePolicy{
		operation.CreateCode:         {Limit: 50, Window: time.Hour},
		operation.Redeem:             {Limit: 20, Window: time.Hour},
		operation.ValidateCode:       {Limit: 300, Window: time.Hour},
		operation.Remove:             {Limit: 50, Window: time.Hour},
		operation.RevokeCode:         {Limit: 50, Window: time.Hour},
		operation.RegisterProperty:   {Limit: 20, Window: time.Hour},
		operation.UpdateUnitCapacity: {Limit: 50, Window: time.Hour},
	}
}

func NewRateLimiterService(repo ports.RateLimitRepository, clock ports.Clock, cfg *RateLimiterConfig, logger *logrus.Logger) *RateLimiterService {
	// Apply defaults
	policies := DefaultRatePolicies()
	fallback := RatePolicy{Limit: 60, Window: time.Hour}
	kp := "ratelimit:actor"
	if cfg != nil {
		for op, p := range cfg.Policies {
			if p.Limit > 0 && p.Window > 0 {
				policies[op] = p
			}
		}
		if cfg.Default.Limit > 0 && cfg.Default.Window > 0 {
			fallback = cfg.Default
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &RateLimiterService{repo: repo, clock: clock, policies: policies, fallback: fallback, keyPrefix: kp, logger: logger}
}

// Policy returns the budget applied to op.
func (s *RateLimiterService) Policy(op operation.Name) RatePolicy {
	if p, ok := s.policies[op]; ok {
		return p
	}
	return s.fallback
}

func (s *RateLimiterService) Allow(ctx context.Context, actorID uuid.UUID, op operation.Name) (ports.RateLimitDecision, error) {
	policy := s.Policy(op)
	windowStart := s.clock.Now().Truncate(policy.Window)
	reset := windowStart.Add(policy.Window)
	ttl := policy.Window * 2 // retain overlap window

	key := ports.RateLimitCounterKey{ActorID: actorID, Operation: op, WindowStart: windowStart}
	count, err := s.repo.IncrementWindow(ctx, key, s.keyPrefix, ttl)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"actor_id": actorID, "operation": op}).WithError(err).Error("rate limiter: failed to increment window")
		}
		// fail open
		return ports.RateLimitDecision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit, ResetAt: reset}, err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"actor_id": actorID, "operation": op, "count": count, "limit": policy.Limit}).Debug("rate limiter window state")
	}
	if count > policy.Limit {
		return ports.RateLimitDecision{Allowed: false, Limit: policy.Limit, Remaining: 0, ResetAt: reset}, nil
	}
	return ports.RateLimitDecision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit - count, ResetAt: reset}, nil
}
