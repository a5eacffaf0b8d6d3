package invite

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// InviteCode is a single-use, time-bounded token granting one tenant admission to one unit.
type InviteCode struct {
	Code       string     `json:"code"`
	PropertyID uuid.UUID  `json:"property_id"`
	UnitID     string     `json:"unit_id"`
	LandlordID uuid.UUID  `json:"landlord_id"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RedeemedBy *uuid.UUID `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// ValidTransitions returns the valid status transitions from current status
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusActive:
		return []Status{StatusRedeemed, StatusRevoked, StatusExpired}
	default:
		return []Status{}
	}
}

func (s Status) IsValidTransition(next Status) bool {
	return slices.Contains(s.ValidTransitions(), next)
}

func (s Status) IsTerminal() bool {
	return s != StatusActive
}

// ExpiredAt reports whether the code is past its expiration at now.
// A code expires at ExpiresAt itself, so a zero TTL code is born expired.
func (c *InviteCode) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// UsableAt reports whether the code could still be redeemed at now.
func (c *InviteCode) UsableAt(now time.Time) bool {
	return c.Status == StatusActive && !c.ExpiredAt(now)
}

func (c *InviteCode) transition(next Status) error {
	if !c.Status.IsValidTransition(next) {
		return fmt.Errorf("invite %s: cannot transition from %s to %s", c.Code, c.Status, next)
	}
	c.Status = next
	return nil
}

// Redeem consumes the code for tenantID.
func (c *InviteCode) Redeem(tenantID uuid.UUID, at time.Time) error {
	if err := c.transition(StatusRedeemed); err != nil {
		return err
	}
	c.RedeemedBy = &tenantID
	c.RedeemedAt = &at
	return nil
}

func (c *InviteCode) Expire(at time.Time) error {
	if err := c.transition(StatusExpired); err != nil {
		return err
	}
	c.ClosedAt = &at
	return nil
}

func (c *InviteCode) Revoke(at time.Time) error {
	if err := c.transition(StatusRevoked); err != nil {
		return err
	}
	c.ClosedAt = &at
	return nil
}

// Summary is the read-only view returned by validation.
type Summary struct {
	Code         string    `json:"code"`
	PropertyID   uuid.UUID `json:"property_id"`
	PropertyName string    `json:"property_name"`
	UnitID       string    `json:"unit_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreateCodeRequest issues a new code for one unit.
type CreateCodeRequest struct {
	LandlordID     uuid.UUID `json:"-" validate:"required"`
	PropertyID     uuid.UUID `json:"-" validate:"required"`
	UnitID         string    `json:"-" validate:"required,max=64"`
	TTLSeconds     int64     `json:"ttl_seconds" validate:"min=0,max=2592000"`
	RecipientEmail string    `json:"recipient_email,omitempty" validate:"omitempty,email"`
}

type ValidateRequest struct {
	ActorID uuid.UUID `validate:"required"`
	Code    string    `validate:"required,invite_code"`
}

type RedeemRequest struct {
	Code     string    `validate:"required,invite_code"`
	TenantID uuid.UUID `validate:"required"`
}

// RedeemResult describes the placement created (or found) by a redemption.
type RedeemResult struct {
	PropertyID uuid.UUID `json:"property_id"`
	UnitID     string    `json:"unit_id"`
	AssignedAt time.Time `json:"assigned_at"`
	// Replayed is true when the tenant already occupied the unit and nothing changed.
	Replayed bool `json:"replayed"`
}

type RevokeCodeRequest struct {
	LandlordID uuid.UUID `validate:"required"`
	Code       string    `validate:"required,invite_code"`
}

// Notification is handed to the delivery collaborator after a code is created.
type Notification struct {
	Code           string    `json:"code"`
	PropertyID     uuid.UUID `json:"property_id"`
	PropertyName   string    `json:"property_name"`
	UnitID         string    `json:"unit_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
}
