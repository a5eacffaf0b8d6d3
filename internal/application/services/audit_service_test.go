package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/application/services"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/repositories"
	"github.com/avatarctic/tenancy-engine/test/mocks"
)

func TestAuditService_LogActionStampsIDAndTime(t *testing.T) {
	repo := repositories.NewMemoryAuditRepository()
	clock := mocks.NewFakeClock(epoch)
	svc := services.NewAuditService(repo, clock, nil)
	actor := uuid.New()

	require.NoError(t, svc.LogAction(context.Background(), &audit.CreateAuditLogRequest{
		ActorID:    actor,
		Action:     operation.Redeem,
		Resource:   audit.ResourceInvite,
		ResourceID: "ABCD2345",
		Outcome:    audit.OutcomeSuccess,
	}))
	clock.Advance(time.Second)
	require.NoError(t, svc.LogAction(context.Background(), &audit.CreateAuditLogRequest{
		ActorID:  actor,
		Action:   operation.Redeem,
		Resource: audit.ResourceInvite,
		Outcome:  audit.OutcomeFailure,
		Reason:   "CODE_EXPIRED",
	}))

	entries := repo.Entries(actor)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].ID, 26)
	assert.Less(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, epoch, entries[0].Timestamp)
	assert.Equal(t, "redeem", entries[0].Action)
	assert.Equal(t, "CODE_EXPIRED", entries[1].Reason)
}

func TestAuditService_GetAuditLogsPaging(t *testing.T) {
	var seen *audit.AuditLogFilter
	repo := &mocks.AuditRepositoryMock{
		ListFn: func(_ context.Context, f *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
			seen = f
			return []*audit.AuditLog{}, nil
		},
		CountFn: func(context.Context, *audit.AuditLogFilter) (int, error) { return 7, nil },
	}
	svc := services.NewAuditService(repo, nil, nil)

	tests := []struct {
		name       string
		filter     *audit.AuditLogFilter
		wantLimit  int
		wantOffset int
	}{
		{"nil filter", nil, 50, 0},
		{"zero limit", &audit.AuditLogFilter{}, 50, 0},
		{"capped", &audit.AuditLogFilter{Limit: 10000}, 500, 0},
		{"negative offset", &audit.AuditLogFilter{Limit: 5, Offset: -3}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := svc.GetAuditLogs(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, 7, total)
			assert.Equal(t, tt.wantLimit, seen.Limit)
			assert.Equal(t, tt.wantOffset, seen.Offset)
		})
	}
}

func TestAuditService_PropagatesRepositoryErrors(t *testing.T) {
	repo := &mocks.AuditRepositoryMock{
		CreateFn: func(context.Context, *audit.AuditLog) error { return errors.New("disk full") },
		ListFn: func(context.Context, *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := services.NewAuditService(repo, nil, nil)

	assert.Error(t, svc.LogAction(context.Background(), &audit.CreateAuditLogRequest{ActorID: uuid.New(), Action: operation.Remove}))
	_, _, err := svc.GetAuditLogs(context.Background(), nil)
	assert.Error(t, err)
}
