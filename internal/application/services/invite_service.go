package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// InviteServiceConfig tunes code issuance.
type InviteServiceConfig struct {
	MaxGenerationAttempts int
}

// InviteCodeService issues, validates, redeems and revokes invite codes.
type InviteCodeService struct {
	operationGuard
	tx          *TransactionCoordinator
	properties  ports.PropertyReader
	generator   ports.CodeGenerator
	notifier    ports.InviteNotifier
	maxAttempts int
}

func NewInviteCodeService(tx *TransactionCoordinator, properties ports.PropertyReader, generator ports.CodeGenerator, notifier ports.InviteNotifier, deps OperationDeps, cfg *InviteServiceConfig) *InviteCodeService {
	attempts := 5
	if cfg != nil && cfg.MaxGenerationAttempts > 0 {
		attempts = cfg.MaxGenerationAttempts
	}
	if generator == nil {
		generator = invite.NewGenerator()
	}
	return &InviteCodeService{
		operationGuard: newOperationGuard(deps),
		tx:             tx,
		properties:     properties,
		generator:      generator,
		notifier:       notifier,
		maxAttempts:    attempts,
	}
}

func unitResourceID(propertyID uuid.UUID, unitID string) string {
	return propertyID.String() + "/" + unitID
}

// CreateCode issues a fresh Active code for a unit the landlord owns.
func (s *InviteCodeService) CreateCode(ctx context.Context, req *invite.CreateCodeRequest) (code *invite.InviteCode, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: req.LandlordID, op: operation.CreateCode, resource: audit.ResourceUnit, resourceID: unitResourceID(req.PropertyID, req.UnitID)}
	defer func() {
		if code != nil {
			entry.resource = audit.ResourceInvite
			entry.resourceID = code.Code
			entry.details = map[string]any{"property_id": code.PropertyID, "unit_id": code.UnitID, "expires_at": code.ExpiresAt}
		}
		s.record(ctx, entry, started, err)
	}()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	if err = s.admit(ctx, req.LandlordID, operation.CreateCode); err != nil {
		return nil, err
	}

	p, err := s.ownedProperty(ctx, req.LandlordID, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Unit(req.UnitID); !ok {
		return nil, apperr.ErrUnitNotFound
	}

	now := s.clock.Now().UTC()
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		value, gerr := s.generator.Generate()
		if gerr != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", gerr)
		}
		candidate := &invite.InviteCode{
			Code:       value,
			PropertyID: p.ID,
			UnitID:     req.UnitID,
			LandlordID: req.LandlordID,
			Status:     invite.StatusActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Duration(req.TTLSeconds) * time.Second),
		}
		err = s.tx.Run(ctx, operation.CreateCode, func(ctx context.Context, tx *Tx) error {
			return tx.PutInvite(candidate)
		})
		if errors.Is(err, ports.ErrDuplicateKey) {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"attempt": attempt, "property_id": p.ID}).Warn("invite code collision, regenerating")
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		code = candidate
		break
	}
	if code == nil {
		return nil, apperr.ErrGenerationExhausted
	}

	if s.notifier != nil {
		n := &invite.Notification{
			Code:           code.Code,
			PropertyID:     code.PropertyID,
			PropertyName:   p.Name,
			UnitID:         code.UnitID,
			ExpiresAt:      code.ExpiresAt,
			RecipientEmail: req.RecipientEmail,
		}
		if nerr := s.notifier.NotifyInviteCreated(ctx, n); nerr != nil && s.logger != nil {
			// Log error but don't fail code creation
			s.logger.WithFields(logrus.Fields{"code": code.Code, "property_id": code.PropertyID}).WithError(nerr).Warn("failed to hand off invite notification")
		}
	}
	return code, nil
}

// Validate reports where a code leads without consuming it.
func (s *InviteCodeService) Validate(ctx context.Context, req *invite.ValidateRequest) (summary *invite.Summary, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: req.ActorID, op: operation.ValidateCode, resource: audit.ResourceInvite, resourceID: req.Code}
	defer func() { s.record(ctx, entry, started, err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	normalized, _ := invite.Normalize(req.Code)
	entry.resourceID = normalized
	if err = s.admit(ctx, req.ActorID, operation.ValidateCode); err != nil {
		return nil, err
	}

	var c *invite.InviteCode
	err = s.tx.Run(ctx, operation.ValidateCode, func(ctx context.Context, tx *Tx) error {
		got, gerr := tx.GetInvite(ctx, normalized)
		if gerr != nil {
			return gerr
		}
		c = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err = usability(c, s.clock.Now()); err != nil {
		return nil, err
	}

	p, err := s.properties.GetProperty(ctx, c.PropertyID)
	if errors.Is(err, apperr.ErrPropertyNotFound) {
		return nil, apperr.ErrUnitNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, ok := p.Unit(c.UnitID); !ok {
		return nil, apperr.ErrUnitNotFound
	}
	entry.details = map[string]any{"property_id": c.PropertyID, "unit_id": c.UnitID}
	return &invite.Summary{
		Code:         c.Code,
		PropertyID:   c.PropertyID,
		PropertyName: p.Name,
		UnitID:       c.UnitID,
		ExpiresAt:    c.ExpiresAt,
	}, nil
}

// usability maps a code's state at now to the error a consumer should see, or nil.
func usability(c *invite.InviteCode, now time.Time) error {
	switch c.Status {
	case invite.StatusRedeemed:
		return apperr.ErrCodeAlreadyRedeemed
	case invite.StatusRevoked:
		return apperr.ErrCodeRevoked
	case invite.StatusExpired:
		return apperr.ErrCodeExpired
	}
	if c.ExpiredAt(now) {
		return apperr.ErrCodeExpired
	}
	return nil
}

// Redeem consumes a code and places the tenant in its unit in a single commit.
func (s *InviteCodeService) Redeem(ctx context.Context, req *invite.RedeemRequest) (result *invite.RedeemResult, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: req.TenantID, op: operation.Redeem, resource: audit.ResourceInvite, resourceID: req.Code}
	defer func() {
		if result != nil {
			entry.details = map[string]any{"property_id": result.PropertyID, "unit_id": result.UnitID, "replayed": result.Replayed}
		}
		s.record(ctx, entry, started, err)
	}()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	normalized, _ := invite.Normalize(req.Code)
	entry.resourceID = normalized
	if err = s.admit(ctx, req.TenantID, operation.Redeem); err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, operation.Redeem, func(ctx context.Context, tx *Tx) error {
		result = nil
		now := s.clock.Now().UTC()

		c, err := tx.GetInvite(ctx, normalized)
		if err != nil {
			return err
		}

		if c.Status == invite.StatusRedeemed && c.RedeemedBy != nil && *c.RedeemedBy == req.TenantID {
			replay, err := s.replay(ctx, tx, c, req.TenantID)
			if err != nil {
				return err
			}
			if replay != nil {
				result = replay
				return nil
			}
		}
		if c.Status != invite.StatusActive {
			return usability(c, now)
		}
		if c.ExpiredAt(now) {
			if err := c.Expire(now); err != nil {
				return err
			}
			if err := tx.PutInvite(c); err != nil {
				return err
			}
			tx.Reject(apperr.ErrCodeExpired)
			return nil
		}

		p, err := tx.GetProperty(ctx, c.PropertyID)
		if errors.Is(err, apperr.ErrPropertyNotFound) {
			return apperr.ErrUnitNotFound
		}
		if err != nil {
			return err
		}
		unit, ok := p.Unit(c.UnitID)
		if !ok {
			return apperr.ErrUnitNotFound
		}

		assoc, err := tx.GetTenantAssociation(ctx, req.TenantID)
		if err != nil {
			return err
		}

		switch unit.Admit(req.TenantID) {
		case property.AlreadyMember:
			assignedAt := now
			if pl, found := assoc.Find(p.ID, unit.ID); found {
				assignedAt = pl.AssignedAt
			}
			result = &invite.RedeemResult{PropertyID: p.ID, UnitID: unit.ID, AssignedAt: assignedAt, Replayed: true}
			return nil
		case property.UnitFull:
			return apperr.ErrUnitFull
		}

		p.UpdatedAt = now
		if err := tx.PutProperty(p); err != nil {
			return err
		}
		assoc.Add(tenancy.Placement{PropertyID: p.ID, UnitID: unit.ID, AssignedAt: now})
		if err := tx.PutTenantAssociation(assoc); err != nil {
			return err
		}
		if err := c.Redeem(req.TenantID, now); err != nil {
			return err
		}
		if err := tx.PutInvite(c); err != nil {
			return err
		}
		roster, err := tx.GetLandlordRoster(ctx, p.LandlordID)
		if err != nil {
			return err
		}
		roster.Add(tenancy.RosterEntry{TenantID: req.TenantID, PropertyID: p.ID, UnitID: unit.ID, AddedAt: now})
		if err := tx.PutLandlordRoster(roster); err != nil {
			return err
		}
		result = &invite.RedeemResult{PropertyID: p.ID, UnitID: unit.ID, AssignedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// replay returns the existing placement when a code this tenant already redeemed is presented
// again and the tenant still occupies the unit. It returns nil when the placement is gone.
func (s *InviteCodeService) replay(ctx context.Context, tx *Tx, c *invite.InviteCode, tenantID uuid.UUID) (*invite.RedeemResult, error) {
	p, err := tx.GetProperty(ctx, c.PropertyID)
	if errors.Is(err, apperr.ErrPropertyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	unit, ok := p.Unit(c.UnitID)
	if !ok || !unit.Has(tenantID) {
		return nil, nil
	}
	var assignedAt time.Time
	if c.RedeemedAt != nil {
		assignedAt = *c.RedeemedAt
	}
	assoc, err := tx.GetTenantAssociation(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if pl, found := assoc.Find(p.ID, unit.ID); found {
		assignedAt = pl.AssignedAt
	}
	return &invite.RedeemResult{PropertyID: p.ID, UnitID: unit.ID, AssignedAt: assignedAt, Replayed: true}, nil
}

// RevokeCode cancels an Active code. Revoking an already revoked code succeeds.
func (s *InviteCodeService) RevokeCode(ctx context.Context, req *invite.RevokeCodeRequest) (code *invite.InviteCode, err error) {
	started := s.clock.Now()
	entry := auditEntry{actor: req.LandlordID, op: operation.RevokeCode, resource: audit.ResourceInvite, resourceID: req.Code}
	defer func() { s.record(ctx, entry, started, err) }()

	if err = s.validate(req); err != nil {
		return nil, err
	}
	normalized, _ := invite.Normalize(req.Code)
	entry.resourceID = normalized
	if err = s.admit(ctx, req.LandlordID, operation.RevokeCode); err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, operation.RevokeCode, func(ctx context.Context, tx *Tx) error {
		code = nil
		now := s.clock.Now().UTC()
		c, err := tx.GetInvite(ctx, normalized)
		if err != nil {
			return err
		}
		if c.LandlordID != req.LandlordID {
			return apperr.ErrNotOwner
		}
		switch c.Status {
		case invite.StatusRevoked:
			code = c
			return nil
		case invite.StatusRedeemed:
			return apperr.ErrCodeAlreadyRedeemed
		case invite.StatusExpired:
			return apperr.ErrCodeExpired
		}
		if c.ExpiredAt(now) {
			if err := c.Expire(now); err != nil {
				return err
			}
			tx.Reject(apperr.ErrCodeExpired)
			return tx.PutInvite(c)
		}
		if err := c.Revoke(now); err != nil {
			return err
		}
		code = c
		return tx.PutInvite(c)
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// ListCodes returns every code issued for a property the landlord owns, newest first.
func (s *InviteCodeService) ListCodes(ctx context.Context, landlordID, propertyID uuid.UUID) ([]*invite.InviteCode, error) {
	if _, err := s.ownedProperty(ctx, landlordID, propertyID); err != nil {
		return nil, err
	}
	docs, err := s.tx.Store().List(ctx, ports.KindInvite)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	codes := make([]*invite.InviteCode, 0)
	for _, d := range docs {
		c, err := decodeInvite(d)
		if err != nil {
			return nil, err
		}
		if c.PropertyID == propertyID {
			codes = append(codes, c)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

// ownedProperty loads a property through the read cache. A property that does not exist is
// reported as NotOwner so callers cannot discover other landlords' ids.
func (s *InviteCodeService) ownedProperty(ctx context.Context, landlordID, propertyID uuid.UUID) (*property.Property, error) {
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
