package property_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
)

func newProperty(units ...property.Unit) *property.Property {
	return &property.Property{ID: uuid.New(), Name: "Elm Court", LandlordID: uuid.New(), Units: units}
}

func TestProperty_Validate(t *testing.T) {
	ok := newProperty(property.Unit{ID: "1A", Capacity: 2}, property.Unit{ID: "1B", Capacity: 1})
	require.NoError(t, ok.Validate())

	dup := newProperty(property.Unit{ID: "1A", Capacity: 2}, property.Unit{ID: "1A", Capacity: 1})
	assert.Error(t, dup.Validate())

	zero := newProperty(property.Unit{ID: "1A", Capacity: 0})
	assert.Error(t, zero.Validate())

	a, b := uuid.New(), uuid.New()
	over := newProperty(property.Unit{ID: "1A", Capacity: 1, Tenants: []uuid.UUID{a, b}})
	assert.Error(t, over.Validate())

	twice := newProperty(property.Unit{ID: "1A", Capacity: 3, Tenants: []uuid.UUID{a, a}})
	assert.Error(t, twice.Validate())

	noLandlord := newProperty(property.Unit{ID: "1A", Capacity: 1})
	noLandlord.LandlordID = uuid.Nil
	assert.Error(t, noLandlord.Validate())
}

func TestUnit_AdmitNeverExceedsCapacity(t *testing.T) {
	u := property.Unit{ID: "1A", Capacity: 2}
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	assert.Equal(t, property.Admit, u.Admit(first))
	assert.Equal(t, property.AlreadyMember, u.Admit(first))
	assert.Equal(t, property.Admit, u.Admit(second))
	assert.Equal(t, property.UnitFull, u.Admit(third))

	assert.Equal(t, 2, u.Occupancy())
	assert.Equal(t, 0, u.Vacancies())
	assert.False(t, u.Has(third))
	require.NoError(t, u.Validate())
}

func TestCheckAdmission_DoesNotMutate(t *testing.T) {
	u := property.Unit{ID: "1A", Capacity: 1}
	assert.Equal(t, property.Admit, property.CheckAdmission(u, uuid.New()))
	assert.Empty(t, u.Tenants)
	assert.Equal(t, "unit_full", property.UnitFull.String())
}

func TestUnit_Evict(t *testing.T) {
	tenant := uuid.New()
	u := property.Unit{ID: "1A", Capacity: 1, Tenants: []uuid.UUID{tenant}}
	assert.True(t, u.Evict(tenant))
	assert.False(t, u.Evict(tenant))
	assert.Equal(t, 1, u.Vacancies())
}

func TestUnit_SetCapacity(t *testing.T) {
	u := property.Unit{ID: "1A", Capacity: 3, Tenants: []uuid.UUID{uuid.New(), uuid.New()}}
	require.NoError(t, u.SetCapacity(2))
	assert.Equal(t, 2, u.Capacity)
	assert.ErrorIs(t, u.SetCapacity(1), property.ErrCapacityBelowOccupancy)
	assert.Error(t, u.SetCapacity(0))
	assert.Equal(t, 2, u.Capacity)
}

func TestProperty_UnitAndOwnership(t *testing.T) {
	p := newProperty(property.Unit{ID: "1A", Capacity: 1})
	u, ok := p.Unit("1A")
	require.True(t, ok)
	u.Capacity = 4
	assert.Equal(t, 4, p.Units[0].Capacity)

	_, ok = p.Unit("missing")
	assert.False(t, ok)

	assert.True(t, p.OwnedBy(p.LandlordID))
	assert.False(t, p.OwnedBy(uuid.New()))
	var nilProperty *property.Property
	assert.False(t, nilProperty.OwnedBy(uuid.New()))
}
