package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
)

// RateLimitCounterKey identifies one fixed-window counter.
type RateLimitCounterKey struct {
	ActorID     uuid.UUID
	Operation   operation.Name
	WindowStart time.Time
}

// RateLimitRepository provides low-level atomic operations for rate limiting counters.
// It abstracts storage (e.g., Redis). Implementation should be concurrency-safe.
type RateLimitRepository interface {
	// IncrementWindow atomically increments the counter for key and ensures it expires after ttl.
	// Returns the updated count.
	IncrementWindow(ctx context.Context, key RateLimitCounterKey, keyPrefix string, ttl time.Duration) (int, error)
}

// RateLimitDecision is the result of consuming one call from an actor's budget.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a denied caller should wait before the window rolls over.
func (d RateLimitDecision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// RateLimiterService gates operations per actor. MUST be safe for concurrent use.
type RateLimiterService interface {
	// Allow consumes one call of op for actorID and reports whether it is permitted.
	Allow(ctx context.Context, actorID uuid.UUID, op operation.Name) (RateLimitDecision, error)
}
