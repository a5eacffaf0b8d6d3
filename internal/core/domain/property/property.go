package property

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Property is a landlord-owned building made of ordered units.
type Property struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	LandlordID uuid.UUID `json:"landlord_id"`
	Units      []Unit    `json:"units"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Unit is a rentable sub-division of a property with a maximum occupant count.
type Unit struct {
	ID       string      `json:"id"`
	Capacity int         `json:"capacity"`
	Tenants  []uuid.UUID `json:"tenants"`
}

// OwnedBy reports whether landlordID owns the property.
func (p *Property) OwnedBy(landlordID uuid.UUID) bool {
	return p != nil && p.LandlordID == landlordID
}

// Unit returns a pointer to the unit with id so callers can mutate it in place.
func (p *Property) Unit(id string) (*Unit, bool) {
	for i := range p.Units {
		if p.Units[i].ID == id {
			return &p.Units[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the property and every unit.
// It runs before every write, not only at creation.
func (p *Property) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("property id is required")
	}
	if p.LandlordID == uuid.Nil {
		return fmt.Errorf("property %s has no landlord", p.ID)
	}
	seen := make(map[string]struct{}, len(p.Units))
	for i := range p.Units {
		u := &p.Units[i]
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("property %s has duplicate unit %q", p.ID, u.ID)
		}
		seen[u.ID] = struct{}{}
		if err := u.Validate(); err != nil {
			return fmt.Errorf("property %s: %w", p.ID, err)
		}
	}
	return nil
}

// Validate enforces |tenants| <= capacity and tenant uniqueness.
func (u *Unit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("unit id is required")
	}
	if u.Capacity < 1 {
		return fmt.Errorf("unit %q capacity must be positive", u.ID)
	}
	if len(u.Tenants) > u.Capacity {
		return fmt.Errorf("unit %q holds %d tenants over capacity %d", u.ID, len(u.Tenants), u.Capacity)
	}
	for i, t := range u.Tenants {
		if slices.Contains(u.Tenants[i+1:], t) {
			return fmt.Errorf("unit %q lists tenant %s twice", u.ID, t)
		}
	}
	return nil
}

func (u *Unit) Has(tenantID uuid.UUID) bool {
	return slices.Contains(u.Tenants, tenantID)
}

func (u *Unit) Occupancy() int {
	return len(u.Tenants)
}

func (u *Unit) Vacancies() int {
	if v := u.Capacity - len(u.Tenants); v > 0 {
		return v
	}
	return 0
}

// Admit adds tenantID after checking admission; it never lets the unit exceed capacity.
func (u *Unit) Admit(tenantID uuid.UUID) Admission {
	decision := CheckAdmission(*u, tenantID)
	if decision == Admit {
		u.Tenants = append(u.Tenants, tenantID)
	}
	return decision
}

// Evict removes tenantID and reports whether it was present.
func (u *Unit) Evict(tenantID uuid.UUID) bool {
	idx := slices.Index(u.Tenants, tenantID)
	if idx < 0 {
		return false
	}
	u.Tenants = slices.Delete(u.Tenants, idx, idx+1)
	return true
}

// SetCapacity changes the capacity unless that would put the unit over capacity.
func (u *Unit) SetCapacity(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("unit %q capacity must be positive", u.ID)
	}
	if capacity < len(u.Tenants) {
		return ErrCapacityBelowOccupancy
	}
	u.Capacity = capacity
	return nil
}

// RegisterPropertyRequest creates a property together with its units.
type RegisterPropertyRequest struct {
	LandlordID uuid.UUID  `json:"-" validate:"required"`
	Name       string     `json:"name" validate:"required,max=200"`
	Units      []UnitSpec `json:"units" validate:"required,min=1,max=500,dive"`
}

type UnitSpec struct {
	ID       string `json:"id" validate:"required,max=64"`
	Capacity int    `json:"capacity" validate:"required,min=1,max=1000"`
}

// UpdateUnitCapacityRequest changes the maximum number of simultaneous tenants of a unit.
type UpdateUnitCapacityRequest struct {
	LandlordID uuid.UUID `json:"-" validate:"required"`
	PropertyID uuid.UUID `json:"-" validate:"required"`
	UnitID     string    `json:"-" validate:"required,max=64"`
	Capacity   int       `json:"capacity" validate:"required,min=1,max=1000"`
}
