package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// PropertyService registers properties, adjusts unit capacity and serves the tenancy read models.
type PropertyService struct {
	operationGuard
	tx         *TransactionCoordinator
	properties ports.PropertyReader
	newID      func() uuid.UUID
}

func NewPropertyService(tx *TransactionCoordinator, properties ports.PropertyReader, deps OperationDeps) *PropertyService {
	return &PropertyService{operationGuard: newOperationGuard(deps), tx: tx, properties: properties, newID: uuid.New}
}

func (s *PropertyService) RegisterProperty(ctx context.Context, req *property.RegisterPropertyRequest) (created *property.Property, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: req.LandlordID, op: operation.RegisterProperty, resource: audit.ResourceProperty}
	defer func() {
		if created != nil {
			entry.resourceID = created.ID.String()
			entry.details = map[string]any{"name": created.Name, "units": len(created.Units)}
		}
		s.record(ctx, entry, started, err)
	}()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	if err = s.admit(ctx, req.LandlordID, operation.RegisterProperty); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	p := &property.Property{
		ID:         s.newID(),
		Name:       req.Name,
		LandlordID: req.LandlordID,
		Units:      make([]property.Unit, 0, len(req.Units)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, u := range req.Units {
		p.Units = append(p.Units, property.Unit{ID: u.ID, Capacity: u.Capacity, Tenants: []uuid.UUID{}})
	}
	if verr := p.Validate(); verr != nil {
		return nil, apperr.ErrInvalidRequest.WithMessage("%s", verr.Error())
	}

	err = s.tx.Run(ctx, operation.RegisterProperty, func(ctx context.Context, tx *Tx) error {
		return tx.CreateProperty(p)
	})
	if errors.Is(err, ports.ErrDuplicateKey) {
		return nil, apperr.ErrPropertyExists
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateUnitCapacity refuses to shrink a unit below its current occupancy.
func (s *PropertyService) UpdateUnitCapacity(ctx context.Context, req *property.UpdateUnitCapacityRequest) (updated *property.Property, err error) {
	started := s.clock.Now()
	entry := auditEntry{
		actor:      req.LandlordID,
		op:         operation.UpdateUnitCapacity,
		resource:   audit.ResourceUnit,
		resourceID: unitResourceID(req.PropertyID, req.UnitID),
		details:    map[string]any{"capacity": req.Capacity},
	}
	defer func() { s.record(ctx, entry, started, err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	if err = s.admit(ctx, req.LandlordID, operation.UpdateUnitCapacity); err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, operation.UpdateUnitCapacity, func(ctx context.Context, tx *Tx) error {
		updated = nil
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
		unit, ok := p.Unit(req.UnitID)
		if !ok {
			return apperr.ErrUnitNotFound
		}
		if unit.Capacity == req.Capacity {
			updated = p
			return nil
		}
		if err := unit.SetCapacity(req.Capacity); err != nil {
			if errors.Is(err, property.ErrCapacityBelowOccupancy) {
				return apperr.ErrCapacityBelowOccupancy.WithMessage("unit %s holds %d tenants", unit.ID, unit.Occupancy())
			}
			return apperr.ErrInvalidRequest.WithMessage("%s", err.Error())
		}
		p.UpdatedAt = s.clock.Now().UTC()
		updated = p
		return tx.PutProperty(p)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetProperty returns a property to its owner.
func (s *PropertyService) GetProperty(ctx context.Context, landlordID, propertyID uuid.UUID) (*property.Property, error) {
	p, err := s.properties.GetProperty(ctx, propertyID)
	if errors.Is(err, apperr.ErrPropertyNotFound) {
		return nil, apperr.ErrNotOwner
	}
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(landlordID) {
		return nil, apperr.ErrNotOwner
	}
	return p, nil
}

func (s *PropertyService) GetTenantAssociation(ctx context.Context, tenantID uuid.UUID) (*tenancy.TenantAssociation, error) {
	var assoc *tenancy.TenantAssociation
	err := s.tx.Run(ctx, operation.ReadAssociation, func(ctx context.Context, tx *Tx) error {
		a, err := tx.GetTenantAssociation(ctx, tenantID)
		assoc = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant association: %w", err)
	}
	if assoc.Placements == nil {
		assoc.Placements = []tenancy.Placement{}
	}
	return assoc, nil
}

func (s *PropertyService) GetLandlordRoster(ctx context.Context, landlordID uuid.UUID) (*tenancy.LandlordRoster, error) {
	var roster *tenancy.LandlordRoster
	err := s.tx.Run(ctx, operation.ReadRoster, func(ctx context.Context, tx *Tx) error {
		r, err := tx.GetLandlordRoster(ctx, landlordID)
		roster = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load landlord roster: %w", err)
	}
	if roster.Entries == nil {
		roster.Entries = []tenancy.RosterEntry{}
	}
	return roster, nil
}
