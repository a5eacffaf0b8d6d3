package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

var sf singleflight.Group

// Utility helpers
func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// DocumentPropertyReader reads properties straight from the document store.
type DocumentPropertyReader struct {
	store ports.DocumentStore
}

func NewDocumentPropertyReader(store ports.DocumentStore) *DocumentPropertyReader {
	return &DocumentPropertyReader{store: store}
}

func (r *DocumentPropertyReader) GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	doc, err := r.store.Get(ctx, ports.DocumentKey{Kind: ports.KindProperty, ID: id.String()})
	if errors.Is(err, ports.ErrDocumentNotFound) {
		return nil, apperr.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", id, err)
	}
	var p property.Property
	if err := json.Unmarshal(doc.Body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode property %s: %w", id, err)
	}
	return &p, nil
}

// CachingPropertyReader decorates a PropertyReader with cache-aside. Concurrent misses for the
// same property are coalesced into one load. The transaction coordinator deletes entries for
// every property it writes.
type CachingPropertyReader struct {
	inner ports.PropertyReader
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingPropertyReader(inner ports.PropertyReader, cache ports.Cache, ttl time.Duration) *CachingPropertyReader {
	return &CachingPropertyReader{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingPropertyReader) GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	key := ports.PropertyCacheKey(id)
	if v, ok := cacheGet[property.Property](c.cache, ctx, key); ok {
		return v, nil
	}
	res, err, _ := sf.Do(key, func() (any, error) {
		if v, ok := cacheGet[property.Property](c.cache, ctx, key); ok {
			return v, nil
		}
		p, err := c.inner.GetProperty(ctx, id)
		if err != nil {
			return nil, err
		}
		cacheSetSilently(c.cache, ctx, key, p, c.ttl)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, ok := res.(*property.Property)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight result")
	}
	// callers may mutate what they get back; singleflight shares one value between them
	cp := *p
	cp.Units = make([]property.Unit, len(p.Units))
	for i, u := range p.Units {
		u.Tenants = append([]uuid.UUID(nil), u.Tenants...)
		cp.Units[i] = u
	}
	return &cp, nil
}
