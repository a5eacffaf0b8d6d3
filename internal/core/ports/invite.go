package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
)

// InviteCodeService issues, inspects, consumes and cancels invite codes.
type InviteCodeService interface {
	CreateCode(ctx context.Context, req *invite.CreateCodeRequest) (*invite.InviteCode, error)
	Validate(ctx context.Context, req *invite.ValidateRequest) (*invite.Summary, error)
	Redeem(ctx context.Context, req *invite.RedeemRequest) (*invite.RedeemResult, error)
	RevokeCode(ctx context.Context, req *invite.RevokeCodeRequest) (*invite.InviteCode, error)
	ListCodes(ctx context.Context, landlordID, propertyID uuid.UUID) ([]*invite.InviteCode, error)
}

// RevocationService removes tenants from units.
type RevocationService interface {
	Remove(ctx context.Context, req *tenancy.RemoveRequest) error
}

// InviteNotifier hands a freshly created code to the delivery channel (email, QR rendering).
type InviteNotifier interface {
	NotifyInviteCreated(ctx context.Context, n *invite.Notification) error
}

// ExpirySweeper proactively moves past-due Active codes to Expired.
type ExpirySweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// CodeGenerator produces candidate invite code values. Uniqueness is enforced by the store.
type CodeGenerator interface {
	Generate() (string, error)
}
