package tenancy_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
)

func TestTenantAssociation_AddRemove(t *testing.T) {
	a := tenancy.TenantAssociation{TenantID: uuid.New()}
	pid := uuid.New()
	now := time.Now()

	assert.True(t, a.Add(tenancy.Placement{PropertyID: pid, UnitID: "1A", AssignedAt: now}))
	assert.False(t, a.Add(tenancy.Placement{PropertyID: pid, UnitID: "1A", AssignedAt: now.Add(time.Hour)}))
	assert.True(t, a.Add(tenancy.Placement{PropertyID: pid, UnitID: "1B", AssignedAt: now}))

	p, ok := a.Find(pid, "1A")
	assert.True(t, ok)
	assert.Equal(t, now, p.AssignedAt)

	assert.True(t, a.Remove(pid, "1A"))
	assert.False(t, a.Remove(pid, "1A"))
	assert.Len(t, a.Placements, 1)
}

func TestLandlordRoster_AddRemove(t *testing.T) {
	r := tenancy.LandlordRoster{LandlordID: uuid.New()}
	tenant, pid := uuid.New(), uuid.New()

	assert.True(t, r.Add(tenancy.RosterEntry{TenantID: tenant, PropertyID: pid, UnitID: "1A"}))
	assert.False(t, r.Add(tenancy.RosterEntry{TenantID: tenant, PropertyID: pid, UnitID: "1A"}))
	assert.True(t, r.Add(tenancy.RosterEntry{TenantID: tenant, PropertyID: pid, UnitID: "2A"}))

	assert.True(t, r.Remove(tenant, pid, "1A"))
	assert.False(t, r.Remove(tenant, pid, "1A"))
	assert.Len(t, r.Entries, 1)
}
