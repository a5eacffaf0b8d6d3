package repositories_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/repositories"
	"github.com/avatarctic/tenancy-engine/test/mocks"
)

func storedProperty(t *testing.T, s ports.DocumentStore) *property.Property {
	t.Helper()
	p := &property.Property{
		ID:         uuid.New(),
		Name:       "Birch Yard",
		LandlordID: uuid.New(),
		Units:      []property.Unit{{ID: "1", Capacity: 2, Tenants: []uuid.UUID{uuid.New()}}},
	}
	body, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, s.Commit(context.Background(), nil, []ports.DocumentWrite{{
		Key: ports.DocumentKey{Kind: ports.KindProperty, ID: p.ID.String()}, Body: body, CreateOnly: true,
	}}))
	return p
}

func TestDocumentPropertyReader(t *testing.T) {
	s := repositories.NewMemoryDocumentStore()
	p := storedProperty(t, s)
	r := repositories.NewDocumentPropertyReader(s)

	got, err := r.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Units[0].Tenants, got.Units[0].Tenants)

	_, err = r.GetProperty(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrPropertyNotFound)
}

func TestCachingPropertyReader_CachesAndCopies(t *testing.T) {
	s := repositories.NewMemoryDocumentStore()
	p := storedProperty(t, s)
	inner := &mocks.PropertyReaderMock{GetPropertyFn: repositories.NewDocumentPropertyReader(s).GetProperty}
	cache := mocks.NewCacheMock()
	r := repositories.NewCachingPropertyReader(inner, cache, time.Minute)

	first, err := r.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Contains(t, cache.Data, ports.PropertyCacheKey(p.ID))

	first.Units[0].Tenants[0] = uuid.Nil

	second, err := r.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls, "second read is served from cache")
	assert.Equal(t, p.Units[0].Tenants[0], second.Units[0].Tenants[0])
}

func TestCachingPropertyReader_DoesNotCacheMisses(t *testing.T) {
	inner := &mocks.PropertyReaderMock{GetPropertyFn: func(context.Context, uuid.UUID) (*property.Property, error) {
		return nil, apperr.ErrPropertyNotFound
	}}
	cache := mocks.NewCacheMock()
	r := repositories.NewCachingPropertyReader(inner, cache, time.Minute)

	_, err := r.GetProperty(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrPropertyNotFound)
	assert.Empty(t, cache.Data)
}

func TestCachingPropertyReader_CoalescesConcurrentMisses(t *testing.T) {
	id := uuid.New()
	release := make(chan struct{})
	inner := &mocks.PropertyReaderMock{GetPropertyFn: func(context.Context, uuid.UUID) (*property.Property, error) {
		<-release
		return &property.Property{ID: id, LandlordID: uuid.New(), Units: []property.Unit{{ID: "1", Capacity: 1}}}, nil
	}}
	r := repositories.NewCachingPropertyReader(inner, nil, time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.GetProperty(context.Background(), id)
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Less(t, inner.Calls, 8)
}

func TestCachingPropertyReader_PropagatesErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	inner := &mocks.PropertyReaderMock{GetPropertyFn: func(context.Context, uuid.UUID) (*property.Property, error) { return nil, boom }}
	r := repositories.NewCachingPropertyReader(inner, mocks.NewCacheMock(), time.Minute)

	_, err := r.GetProperty(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}
