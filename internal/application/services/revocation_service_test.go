package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
)

func removeReq(landlord, tenant, propertyID uuid.UUID, unitID string) *tenancy.RemoveRequest {
	return &tenancy.RemoveRequest{LandlordID: landlord, TenantID: tenant, PropertyID: propertyID, UnitID: unitID}
}

func TestRevocationService_RemoveFreesCapacity(t *testing.T) {
	e := newEngine(t)
	landlord, first, second := uuid.New(), uuid.New(), uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "1A", Capacity: 1})

	code := e.createCode(t, landlord, p.ID, "1A", time.Hour)
	_, err := e.redeem(code.Code, first)
	require.NoError(t, err)

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, first, p.ID, "1A")))
	assert.Empty(t, e.unit(t, landlord, p.ID, "1A").Tenants)

	assoc, err := e.properties.GetTenantAssociation(context.Background(), first)
	require.NoError(t, err)
	assert.Empty(t, assoc.Placements)
	roster, err := e.properties.GetLandlordRoster(context.Background(), landlord)
	require.NoError(t, err)
	assert.Empty(t, roster.Entries)

	next := e.createCode(t, landlord, p.ID, "1A", time.Hour)
	_, err = e.redeem(next.Code, second)
	require.NoError(t, err, "freed slot can be filled again")
}

func TestRevocationService_RemoveIsIdempotent(t *testing.T) {
	e := newEngine(t)
	landlord, tenant := uuid.New(), uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "1A", Capacity: 2})
	code := e.createCode(t, landlord, p.ID, "1A", time.Hour)
	_, err := e.redeem(code.Code, tenant)
	require.NoError(t, err)

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, tenant, p.ID, "1A")))
	before, err := e.store.Get(context.Background(), propertyKey(p.ID))
	require.NoError(t, err)

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, tenant, p.ID, "1A")))
	after, err := e.store.Get(context.Background(), propertyKey(p.ID))
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "second remove writes nothing")

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, uuid.New(), p.ID, "1A")), "never-placed tenant")
}

func TestRevocationService_RemoveFromUnknownUnitIsNoOp(t *testing.T) {
	e := newEngine(t)
	landlord, tenant := uuid.New(), uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "1A", Capacity: 1})
	code := e.createCode(t, landlord, p.ID, "1A", time.Hour)
	_, err := e.redeem(code.Code, tenant)
	require.NoError(t, err)
	before, err := e.store.Get(context.Background(), propertyKey(p.ID))
	require.NoError(t, err)

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, tenant, p.ID, "9Z")))

	after, err := e.store.Get(context.Background(), propertyKey(p.ID))
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, []uuid.UUID{tenant}, e.unit(t, landlord, p.ID, "1A").Tenants)

	err = e.revocations.Remove(context.Background(), removeReq(uuid.New(), tenant, p.ID, "9Z"))
	assert.ErrorIs(t, err, apperr.ErrNotOwner, "ownership is checked before the unit")
}

func TestRevocationService_RemoveLeavesOtherPlacements(t *testing.T) {
	e := newEngine(t)
	landlord, tenant := uuid.New(), uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "1A", Capacity: 1}, property.UnitSpec{ID: "2B", Capacity: 1})
	a := e.createCode(t, landlord, p.ID, "1A", time.Hour)
	b := e.createCode(t, landlord, p.ID, "2B", time.Hour)
	_, err := e.redeem(a.Code, tenant)
	require.NoError(t, err)
	_, err = e.redeem(b.Code, tenant)
	require.NoError(t, err)

	require.NoError(t, e.revocations.Remove(context.Background(), removeReq(landlord, tenant, p.ID, "1A")))

	assoc, err := e.properties.GetTenantAssociation(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, assoc.Placements, 1)
	assert.Equal(t, "2B", assoc.Placements[0].UnitID)
	assert.Equal(t, []uuid.UUID{tenant}, e.unit(t, landlord, p.ID, "2B").Tenants)
}

func TestRevocationService_RemoveErrors(t *testing.T) {
	e := newEngine(t)
	landlord := uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "1A", Capacity: 1})

	err := e.revocations.Remove(context.Background(), removeReq(uuid.New(), uuid.New(), p.ID, "1A"))
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	err = e.revocations.Remove(context.Background(), removeReq(landlord, uuid.New(), uuid.New(), "1A"))
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	err = e.revocations.Remove(context.Background(), removeReq(landlord, uuid.Nil, p.ID, "1A"))
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
