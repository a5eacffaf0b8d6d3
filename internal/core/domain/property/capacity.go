package property

import (
	"errors"

	"github.com/google/uuid"
)

var ErrCapacityBelowOccupancy = errors.New("capacity below current occupancy")

// Admission is the outcome of checking a candidate tenant against a unit.
type Admission int

const (
	// Admit means the tenant is new and a slot is free.
	Admit Admission = iota
	// AlreadyMember is an idempotent success: the tenant already occupies the unit.
	AlreadyMember
	// UnitFull is a hard failure.
	UnitFull
)

func (a Admission) String() string {
	switch a {
	case Admit:
		return "admit"
	case AlreadyMember:
		return "already_member"
	case UnitFull:
		return "unit_full"
	default:
		return "unknown"
	}
}

// CheckAdmission decides whether tenantID may join u. It does not mutate u.
func CheckAdmission(u Unit, tenantID uuid.UUID) Admission {
	if u.Has(tenantID) {
		return AlreadyMember
	}
	if len(u.Tenants) < u.Capacity {
		return Admit
	}
	return UnitFull
}
