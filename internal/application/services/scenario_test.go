package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
)

// Two tenants fill a two-seat unit through separate codes, then one moves out.
func TestScenario_FillUnitThenRemove(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	landlord, x, y, z := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	p := e.registerProperty(t, landlord, property.UnitSpec{ID: "U", Capacity: 2})

	first := e.createCode(t, landlord, p.ID, "U", time.Hour)
	summary, err := e.invites.Validate(ctx, &invite.ValidateRequest{ActorID: x, Code: first.Code})
	require.NoError(t, err)
	assert.Equal(t, p.ID, summary.PropertyID)
	assert.Equal(t, "U", summary.UnitID)

	_, err = e.redeem(first.Code, x)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{x}, e.unit(t, landlord, p.ID, "U").Tenants)

	_, err = e.redeem(first.Code, y)
	assert.ErrorIs(t, err, apperr.ErrCodeAlreadyRedeemed)

	second := e.createCode(t, landlord, p.ID, "U", time.Hour)
	assert.NotEqual(t, first.Code, second.Code)
	_, err = e.redeem(second.Code, y)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{x, y}, e.unit(t, landlord, p.ID, "U").Tenants)

	third := e.createCode(t, landlord, p.ID, "U", time.Hour)
	_, err = e.redeem(third.Code, z)
	assert.ErrorIs(t, err, apperr.ErrUnitFull)

	require.NoError(t, e.revocations.Remove(ctx, removeReq(landlord, x, p.ID, "U")))
	assert.Equal(t, []uuid.UUID{y}, e.unit(t, landlord, p.ID, "U").Tenants)

	before := e.loadProperty(t, landlord, p.ID)
	require.NoError(t, e.revocations.Remove(ctx, removeReq(landlord, x, p.ID, "U")))
	after := e.loadProperty(t, landlord, p.ID)
	assert.Equal(t, before, after)

	_, err = e.redeem(third.Code, z)
	require.NoError(t, err, "the code that bounced off a full unit is still usable")
}
