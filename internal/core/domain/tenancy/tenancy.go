package tenancy

import (
	"time"

	"github.com/google/uuid"
)

// Placement is one (property, unit) a tenant occupies.
type Placement struct {
	PropertyID uuid.UUID `json:"property_id"`
	UnitID     string    `json:"unit_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TenantAssociation lists every unit a tenant currently occupies, across properties.
type TenantAssociation struct {
	TenantID   uuid.UUID   `json:"tenant_id"`
	Placements []Placement `json:"placements"`
}

func (a *TenantAssociation) Find(propertyID uuid.UUID, unitID string) (Placement, bool) {
	for _, p := range a.Placements {
		if p.PropertyID == propertyID && p.UnitID == unitID {
			return p, true
		}
	}
	return Placement{}, false
}

// Add records a placement; it is a no-op returning false if the pair is already held.
func (a *TenantAssociation) Add(p Placement) bool {
	if _, ok := a.Find(p.PropertyID, p.UnitID); ok {
		return false
	}
	a.Placements = append(a.Placements, p)
	return true
}

func (a *TenantAssociation) Remove(propertyID uuid.UUID, unitID string) bool {
	for i, p := range a.Placements {
		if p.PropertyID == propertyID && p.UnitID == unitID {
			a.Placements = append(a.Placements[:i], a.Placements[i+1:]...)
			return true
		}
	}
	return false
}

// RosterEntry is one tenant admitted by a landlord into one unit.
type RosterEntry struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	PropertyID uuid.UUID `json:"property_id"`
	UnitID     string    `json:"unit_id"`
	AddedAt    time.Time `json:"added_at"`
}

// LandlordRoster backs the management views. It is not a source of truth for capacity.
type LandlordRoster struct {
	LandlordID uuid.UUID     `json:"landlord_id"`
	Entries    []RosterEntry `json:"entries"`
}

func (r *LandlordRoster) index(tenantID, propertyID uuid.UUID, unitID string) int {
	for i, e := range r.Entries {
		if e.TenantID == tenantID && e.PropertyID == propertyID && e.UnitID == unitID {
			return i
		}
	}
	return -1
}

func (r *LandlordRoster) Add(e RosterEntry) bool {
	if r.index(e.TenantID, e.PropertyID, e.UnitID) >= 0 {
		return false
	}
	r.Entries = append(r.Entries, e)
	return true
}

func (r *LandlordRoster) Remove(tenantID, propertyID uuid.UUID, unitID string) bool {
	i := r.index(tenantID, propertyID, unitID)
	if i < 0 {
		return false
	}
	r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
	return true
}

// RemoveRequest revokes a tenant's placement in a unit.
type RemoveRequest struct {
	LandlordID uuid.UUID `validate:"required"`
	TenantID   uuid.UUID `validate:"required"`
	PropertyID uuid.UUID `validate:"required"`
	UnitID     string    `validate:"required,max=64"`
}
