package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/application/services"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/repositories"
	"github.com/avatarctic/tenancy-engine/test/mocks"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// engine is a fully wired set of services over in-memory storage and a fake clock.
type engine struct {
	clock       *mocks.FakeClock
	store       *repositories.MemoryDocumentStore
	auditRepo   *repositories.MemoryAuditRepository
	notifier    *mocks.InviteNotifierMock
	tx          *services.TransactionCoordinator
	audit       *services.AuditService
	limiter     *services.RateLimiterService
	invites     *services.InviteCodeService
	revocations *services.RevocationService
	properties  *services.PropertyService
	sweeper     *services.ExpirySweeperService
}

type engineOption func(*engineOptions)

type engineOptions struct {
	policies  map[operation.Name]services.RatePolicy
	generator ports.CodeGenerator
	store     ports.DocumentStore
}

func withPolicy(op operation.Name, limit int, window time.Duration) engineOption {
	return func(o *engineOptions) { o.policies[op] = services.RatePolicy{Limit: limit, Window: window} }
}

func withGenerator(g ports.CodeGenerator) engineOption {
	return func(o *engineOptions) { o.generator = g }
}

func withStore(s ports.DocumentStore) engineOption {
	return func(o *engineOptions) { o.store = s }
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()
	o := engineOptions{policies: map[operation.Name]services.RatePolicy{}}
	for _, op := range operation.All() {
		o.policies[op] = services.RatePolicy{Limit: 10000, Window: time.Hour}
	}
	for _, fn := range opts {
		fn(&o)
	}

	e := &engine{
		clock:     mocks.NewFakeClock(epoch),
		store:     repositories.NewMemoryDocumentStore(),
		auditRepo: repositories.NewMemoryAuditRepository(),
		notifier:  &mocks.InviteNotifierMock{},
	}
	var store ports.DocumentStore = e.store
	if o.store != nil {
		store = o.store
	}

	e.tx = services.NewTransactionCoordinator(store, nil, nil, &services.TxConfig{
		MaxRetries:  50,
		BaseBackoff: 100 * time.Microsecond,
		MaxBackoff:  2 * time.Millisecond,
		Timeout:     10 * time.Second,
	}, nil)
	e.audit = services.NewAuditService(e.auditRepo, e.clock, nil)
	e.limiter = services.NewRateLimiterService(repositories.NewRateLimitMemoryRepository(), e.clock, &services.RateLimiterConfig{Policies: o.policies}, nil)

	deps := services.OperationDeps{RateLimiter: e.limiter, Audit: e.audit, Clock: e.clock}
	reader := repositories.NewDocumentPropertyReader(store)
	e.invites = services.NewInviteCodeService(e.tx, reader, o.generator, e.notifier, deps, nil)
	e.revocations = services.NewRevocationService(e.tx, deps)
	e.properties = services.NewPropertyService(e.tx, reader, deps)
	e.sweeper = services.NewExpirySweeperService(e.tx, deps, 0)
	return e
}

func (e *engine) registerProperty(t *testing.T, landlordID uuid.UUID, units ...property.UnitSpec) *property.Property {
	t.Helper()
	p, err := e.properties.RegisterProperty(context.Background(), &property.RegisterPropertyRequest{
		LandlordID: landlordID,
		Name:       "Maple House",
		Units:      units,
	})
	require.NoError(t, err)
	return p
}

func (e *engine) createCode(t *testing.T, landlordID, propertyID uuid.UUID, unitID string, ttl time.Duration) *invite.InviteCode {
	t.Helper()
	c, err := e.invites.CreateCode(context.Background(), &invite.CreateCodeRequest{
		LandlordID: landlordID,
		PropertyID: propertyID,
		UnitID:     unitID,
		TTLSeconds: int64(ttl / time.Second),
	})
	require.NoError(t, err)
	return c
}

func (e *engine) redeem(code string, tenantID uuid.UUID) (*invite.RedeemResult, error) {
	return e.invites.Redeem(context.Background(), &invite.RedeemRequest{Code: code, TenantID: tenantID})
}

func (e *engine) loadProperty(t *testing.T, landlordID, propertyID uuid.UUID) *property.Property {
	t.Helper()
	p, err := e.properties.GetProperty(context.Background(), landlordID, propertyID)
	require.NoError(t, err)
	return p
}

func (e *engine) unit(t *testing.T, landlordID, propertyID uuid.UUID, unitID string) *property.Unit {
	t.Helper()
	p := e.loadProperty(t, landlordID, propertyID)
	u, ok := p.Unit(unitID)
	require.True(t, ok)
	return u
}
