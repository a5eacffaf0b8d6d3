package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// RateLimitRedisRepository implements rate limiting counter storage with Redis.
type RateLimitRedisRepository struct {
	r redis.Cmdable
}

func NewRateLimitRedisRepository(r redis.Cmdable) *RateLimitRedisRepository {
	return &RateLimitRedisRepository{r: r}
}

func counterKey(prefix string, key ports.RateLimitCounterKey) string {
	return fmt.Sprintf("%s:%s:%s:%d", prefix, key.Operation, key.ActorID.String(), key.WindowStart.Unix())
}

// IncrementWindow increments the per-actor, per-operation counter of a fixed window.
func (repo *RateLimitRedisRepository) IncrementWindow(ctx context.Context, key ports.RateLimitCounterKey, keyPrefix string, ttl time.Duration) (int, error) {
	k := counterKey(keyPrefix, key)
	pipe := repo.r.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// RateLimitMemoryRepository keeps counters in process. Windows are dropped lazily once their
// ttl has passed relative to the newest window seen. The map is only scanned once the
// earliest held expiry has been reached.
type RateLimitMemoryRepository struct {
	mu        sync.Mutex
	counters  map[string]memoryCounter
	nextPrune time.Time
}

type memoryCounter struct {
	count   int
	expires time.Time
}

func NewRateLimitMemoryRepository() *RateLimitMemoryRepository {
	return &RateLimitMemoryRepository{counters: make(map[string]memoryCounter)}
}

func (repo *RateLimitMemoryRepository) IncrementWindow(_ context.Context, key ports.RateLimitCounterKey, keyPrefix string, ttl time.Duration) (int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if len(repo.counters) > 0 && !key.WindowStart.Before(repo.nextPrune) {
		repo.prune(key.WindowStart)
	}
	k := counterKey(keyPrefix, key)
	c := repo.counters[k]
	c.count++
	c.expires = key.WindowStart.Add(ttl)
	repo.counters[k] = c
	if len(repo.counters) == 1 || c.expires.Before(repo.nextPrune) {
		repo.nextPrune = c.expires
	}
	return c.count, nil
}

// prune drops counters expired at now and moves nextPrune to the earliest survivor.
func (repo *RateLimitMemoryRepository) prune(now time.Time) {
	var earliest time.Time
	for k, c := range repo.counters {
		if !now.Before(c.expires) {
			delete(repo.counters, k)
			continue
		}
		if earliest.IsZero() || c.expires.Before(earliest) {
			earliest = c.expires
		}
	}
	repo.nextPrune = earliest
}

// Len reports how many live counters are held.
func (repo *RateLimitMemoryRepository) Len() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return len(repo.counters)
}
