package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// FakeClock is a settable ports.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock { return &FakeClock{now: now} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// SequenceGenerator returns Codes in order, then fails.
type SequenceGenerator struct {
	mu    sync.Mutex
	Codes []string
	next  int
}

func (g *SequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.Codes) {
		return "", fmt.Errorf("sequence exhausted")
	}
	c := g.Codes[g.next]
	g.next++
	return c, nil
}

// InviteNotifierMock records every notification it is handed.
type InviteNotifierMock struct {
	mu       sync.Mutex
	NotifyFn func(ctx context.Context, n *invite.Notification) error
	Sent     []*invite.Notification
}

func (m *InviteNotifierMock) NotifyInviteCreated(ctx context.Context, n *invite.Notification) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, n)
	m.mu.Unlock()
	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, n)
	}
	return nil
}

func (m *InviteNotifierMock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, key ports.RateLimitCounterKey, keyPrefix string, ttl time.Duration) (int, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, key ports.RateLimitCounterKey, keyPrefix string, ttl time.Duration) (int, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, key, keyPrefix, ttl)
	}
	return 1, nil
}

type RateLimiterServiceMock struct {
	AllowFn func(ctx context.Context, actorID uuid.UUID, op operation.Name) (ports.RateLimitDecision, error)
}

func (m *RateLimiterServiceMock) Allow(ctx context.Context, actorID uuid.UUID, op operation.Name) (ports.RateLimitDecision, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, actorID, op)
	}
	return ports.RateLimitDecision{Allowed: true}, nil
}

type AuditRepositoryMock struct {
	CreateFn func(ctx context.Context, l *audit.AuditLog) error
	ListFn   func(ctx context.Context, f *audit.AuditLogFilter) ([]*audit.AuditLog, error)
	CountFn  func(ctx context.Context, f *audit.AuditLogFilter) (int, error)
}

func (m *AuditRepositoryMock) Create(ctx context.Context, l *audit.AuditLog) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}
func (m *AuditRepositoryMock) List(ctx context.Context, f *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, f)
	}
	return nil, nil
}
func (m *AuditRepositoryMock) Count(ctx context.Context, f *audit.AuditLogFilter) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, f)
	}
	return 0, nil
}

type AuditServiceMock struct {
	LogActionFn    func(ctx context.Context, req *audit.CreateAuditLogRequest) error
	GetAuditLogsFn func(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error)
}

func (m *AuditServiceMock) LogAction(ctx context.Context, req *audit.CreateAuditLogRequest) error {
	if m.LogActionFn != nil {
		return m.LogActionFn(ctx, req)
	}
	return nil
}
func (m *AuditServiceMock) GetAuditLogs(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error) {
	if m.GetAuditLogsFn != nil {
		return m.GetAuditLogsFn(ctx, filter)
	}
	return []*audit.AuditLog{}, 0, nil
}

type InviteCodeServiceMock struct {
	CreateCodeFn func(ctx context.Context, req *invite.CreateCodeRequest) (*invite.InviteCode, error)
	ValidateFn   func(ctx context.Context, req *invite.ValidateRequest) (*invite.Summary, error)
	RedeemFn     func(ctx context.Context, req *invite.RedeemRequest) (*invite.RedeemResult, error)
	RevokeCodeFn func(ctx context.Context, req *invite.RevokeCodeRequest) (*invite.InviteCode, error)
	ListCodesFn  func(ctx context.Context, landlordID, propertyID uuid.UUID) ([]*invite.InviteCode, error)
}

func (m *InviteCodeServiceMock) CreateCode(ctx context.Context, req *invite.CreateCodeRequest) (*invite.InviteCode, error) {
	if m.CreateCodeFn != nil {
		return m.CreateCodeFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *InviteCodeServiceMock) Validate(ctx context.Context, req *invite.ValidateRequest) (*invite.Summary, error) {
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *InviteCodeServiceMock) Redeem(ctx context.Context, req *invite.RedeemRequest) (*invite.RedeemResult, error) {
	if m.RedeemFn != nil {
		return m.RedeemFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *InviteCodeServiceMock) RevokeCode(ctx context.Context, req *invite.RevokeCodeRequest) (*invite.InviteCode, error) {
	if m.RevokeCodeFn != nil {
		return m.RevokeCodeFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *InviteCodeServiceMock) ListCodes(ctx context.Context, landlordID, propertyID uuid.UUID) ([]*invite.InviteCode, error) {
	if m.ListCodesFn != nil {
		return m.ListCodesFn(ctx, landlordID, propertyID)
	}
	return []*invite.InviteCode{}, nil
}

type RevocationServiceMock struct {
	RemoveFn func(ctx context.Context, req *tenancy.RemoveRequest) error
}

func (m *RevocationServiceMock) Remove(ctx context.Context, req *tenancy.RemoveRequest) error {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, req)
	}
	return nil
}

type PropertyServiceMock struct {
	RegisterPropertyFn     func(ctx context.Context, req *property.RegisterPropertyRequest) (*property.Property, error)
	UpdateUnitCapacityFn   func(ctx context.Context, req *property.UpdateUnitCapacityRequest) (*property.Property, error)
	GetPropertyFn          func(ctx context.Context, landlordID, propertyID uuid.UUID) (*property.Property, error)
	GetTenantAssociationFn func(ctx context.Context, tenantID uuid.UUID) (*tenancy.TenantAssociation, error)
	GetLandlordRosterFn    func(ctx context.Context, landlordID uuid.UUID) (*tenancy.LandlordRoster, error)
}

func (m *PropertyServiceMock) RegisterProperty(ctx context.Context, req *property.RegisterPropertyRequest) (*property.Property, error) {
	if m.RegisterPropertyFn != nil {
		return m.RegisterPropertyFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *PropertyServiceMock) UpdateUnitCapacity(ctx context.Context, req *property.UpdateUnitCapacityRequest) (*property.Property, error) {
	if m.UpdateUnitCapacityFn != nil {
		return m.UpdateUnitCapacityFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *PropertyServiceMock) GetProperty(ctx context.Context, landlordID, propertyID uuid.UUID) (*property.Property, error) {
	if m.GetPropertyFn != nil {
		return m.GetPropertyFn(ctx, landlordID, propertyID)
	}
	return nil, fmt.Errorf("not implemented")
}
func (m *PropertyServiceMock) GetTenantAssociation(ctx context.Context, tenantID uuid.UUID) (*tenancy.TenantAssociation, error) {
	if m.GetTenantAssociationFn != nil {
		return m.GetTenantAssociationFn(ctx, tenantID)
	}
	return &tenancy.TenantAssociation{TenantID: tenantID, Placements: []tenancy.Placement{}}, nil
}
func (m *PropertyServiceMock) GetLandlordRoster(ctx context.Context, landlordID uuid.UUID) (*tenancy.LandlordRoster, error) {
	if m.GetLandlordRosterFn != nil {
		return m.GetLandlordRosterFn(ctx, landlordID)
	}
	return &tenancy.LandlordRoster{LandlordID: landlordID, Entries: []tenancy.RosterEntry{}}, nil
}

type PropertyReaderMock struct {
	mu            sync.Mutex
	Calls         int
	GetPropertyFn func(ctx context.Context, id uuid.UUID) (*property.Property, error)
}

func (m *PropertyReaderMock) GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GetPropertyFn != nil {
		return m.GetPropertyFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

type IdentityServiceMock struct {
	VerifyFn func(token string) (*auth.Claims, error)
	IssueFn  func(actorID uuid.UUID, role auth.Role, ttl time.Duration) (string, error)
}

func (m *IdentityServiceMock) Verify(token string) (*auth.Claims, error) {
	if m.VerifyFn != nil {
		return m.VerifyFn(token)
	}
	return nil, fmt.Errorf("invalid token")
}
func (m *IdentityServiceMock) Issue(actorID uuid.UUID, role auth.Role, ttl time.Duration) (string, error) {
	if m.IssueFn != nil {
		return m.IssueFn(actorID, role, ttl)
	}
	return "token", nil
}

type HealthCheckerMock struct {
	NameValue string
	CheckFn   func(ctx context.Context) error
}

func (m *HealthCheckerMock) Name() string { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error {
	if m.CheckFn != nil {
		return m.CheckFn(ctx)
	}
	return nil
}

// DocumentStoreMock wraps a real store and lets tests intercept commits.
type DocumentStoreMock struct {
	ports.DocumentStore
	mu       sync.Mutex
	Commits  int
	CommitFn func(ctx context.Context, reads []ports.DocumentVersion, writes []ports.DocumentWrite) error
}

func (m *DocumentStoreMock) Commit(ctx context.Context, reads []ports.DocumentVersion, writes []ports.DocumentWrite) error {
	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	if m.CommitFn != nil {
		return m.CommitFn(ctx, reads, writes)
	}
	return m.DocumentStore.Commit(ctx, reads, writes)
}

// CacheMock is an in-memory ports.Cache that counts deletes.
type CacheMock struct {
	mu      sync.Mutex
	Data    map[string][]byte
	Deleted []string
}

func NewCacheMock() *CacheMock { return &CacheMock{Data: make(map[string][]byte)} }

func (m *CacheMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Data[key]
	return v, ok, nil
}
func (m *CacheMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
	return nil
}
func (m *CacheMock) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}
