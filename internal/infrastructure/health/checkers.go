package health

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	infraDB "github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
)

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.DB.PingContext(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client redis.UniversalClient }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// storeHealthChecker performs a point read against the document store.
type storeHealthChecker struct{ store ports.DocumentStore }

func (s *storeHealthChecker) Name() string { return "document_store" }
func (s *storeHealthChecker) Check(ctx context.Context) error {
	_, err := s.store.Get(ctx, ports.DocumentKey{Kind: ports.KindProperty, ID: "health-check"})
	if err == nil || errors.Is(err, ports.ErrDocumentNotFound) {
		return nil
	}
	return err
}

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.UniversalClient) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewStoreHealthChecker creates a health checker for whichever document store is configured.
func NewStoreHealthChecker(store ports.DocumentStore) ports.HealthChecker {
	return &storeHealthChecker{store: store}
}
