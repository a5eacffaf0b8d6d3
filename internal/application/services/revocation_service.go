package services

import (
	"context"
	"errors"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
)

// RevocationService removes tenants from units. Invite codes are never touched here.
type RevocationService struct {
	operationGuard
	tx *TransactionCoordinator
}

func NewRevocationService(tx *TransactionCoordinator, deps OperationDeps) *RevocationService {
	return &RevocationService{operationGuard: newOperationGuard(deps), tx: tx}
}

// Remove evicts the tenant from the unit, drops the placement and the roster entry in one commit.
// Removing a tenant who is not placed there is a no-op success.
func (s *RevocationService) Remove(ctx context.Context, req *tenancy.RemoveRequest) (err error) {
	started := s.clock.Now()
	entry := auditEntry{
		actor:      req.LandlordID,
		op:         operation.Remove,
		resource:   audit.ResourcePlacement,
		resourceID: unitResourceID(req.PropertyID, req.UnitID),
		details:    map[string]any{"tenant_id": req.TenantID},
	}
	defer func() { s.record(ctx, entry, started, err) }()

	if err = s.validate(req); err != nil {
		return err
	}
	if err = s.admit(ctx, req.LandlordID, operation.Remove); err != nil {
		return err
	}

	removed := false
	err = s.tx.Run(ctx, operation.Remove, func(ctx context.Context, tx *Tx) error {
		removed = false
		p, err := tx.GetProperty(ctx, req.PropertyID)
		if errors.Is(err, apperr.ErrPropertyNotFound) {
			return apperr.ErrNotOwner
		}
		if err != nil {
			return err
		}
		if !p.OwnedBy(req.LandlordID) {
			return apperr.ErrNotOwner
		}
		// nobody can be placed in a unit that does not exist
		unit, ok := p.Unit(req.UnitID)
		if !ok {
			return nil
		}

		assoc, err := tx.GetTenantAssociation(ctx, req.TenantID)
		if err != nil {
			return err
		}
		_, placed := assoc.Find(p.ID, unit.ID)
		if !placed && !unit.Has(req.TenantID) {
			return nil
		}

		if unit.Evict(req.TenantID) {
			p.UpdatedAt = s.clock.Now().UTC()
			if err := tx.PutProperty(p); err != nil {
				return err
			}
		}
		if assoc.Remove(p.ID, unit.ID) {
			if err := tx.PutTenantAssociation(assoc); err != nil {
				return err
			}
		}
		roster, err := tx.GetLandlordRoster(ctx, p.LandlordID)
		if err != nil {
			return err
		}
		if roster.Remove(req.TenantID, p.ID, unit.ID) {
			if err := tx.PutLandlordRoster(roster); err != nil {
				return err
			}
		}
		removed = true
		return nil
	})
	entry.details["removed"] = removed
	return err
}
