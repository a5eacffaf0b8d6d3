package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cache holds serialized property snapshots in front of the document store. Entries are
// advisory: a miss or an error sends the reader to the store, and writers only ever Delete.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set with a ttl of zero keeps the entry until it is deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PropertyCacheKey is the cache key under which a property snapshot is stored.
func PropertyCacheKey(id uuid.UUID) string {
	return "property:id:" + id.String()
}
