package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
)

// PropertyReader loads properties outside of a transaction, e.g. for authorization checks.
// Results may be served from a cache and must not feed a transactional write.
type PropertyReader interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error)
}

// PropertyService manages properties and exposes the tenancy read models.
type PropertyService interface {
	RegisterProperty(ctx context.Context, req *property.RegisterPropertyRequest) (*property.Property, error)
	UpdateUnitCapacity(ctx context.Context, req *property.UpdateUnitCapacityRequest) (*property.Property, error)
	GetProperty(ctx context.Context, landlordID, propertyID uuid.UUID) (*property.Property, error)
	GetTenantAssociation(ctx context.Context, tenantID uuid.UUID) (*tenancy.TenantAssociation, error)
	GetLandlordRoster(ctx context.Context, landlordID uuid.UUID) (*tenancy.LandlordRoster, error)
}
