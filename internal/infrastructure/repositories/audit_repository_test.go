package repositories_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/repositories"
)

func newMockAuditRepository(t *testing.T) (ports.AuditRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return repositories.NewAuditRepository(db.Wrap(sqlx.NewDb(mockDB, "postgres")), nil), mock
}

var auditColumns = []string{"id", "actor_id", "action", "resource", "resource_id", "outcome", "reason", "details", "timestamp"}

func TestAuditRepository_Create(t *testing.T) {
	repo, mock := newMockAuditRepository(t)
	actor := uuid.New()
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_logs`)).
		WithArgs("01J0000000000000000000000A", actor, "redeem", "invite_code", "ABCD2345", "success", "", `{"unit_id":"1A"}`, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &audit.AuditLog{
		ID:         "01J0000000000000000000000A",
		ActorID:    actor,
		Action:     "redeem",
		Resource:   "invite_code",
		ResourceID: "ABCD2345",
		Outcome:    audit.OutcomeSuccess,
		Details:    map[string]any{"unit_id": "1A"},
		Timestamp:  ts,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListAppliesFilter(t *testing.T) {
	repo, mock := newMockAuditRepository(t)
	actor := uuid.New()
	action := operation.Redeem
	outcome := audit.OutcomeFailure
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM audit_logs WHERE actor_id = \$1 AND action = \$2 AND outcome = \$3 ORDER BY timestamp DESC, id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs(actor, "redeem", "failure", 10, 20).
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow("01J0000000000000000000000B", actor.String(), "redeem", "invite_code", "ABCD2345", "failure", "UNIT_FULL", []byte(`{"replayed":false}`), ts).
			AddRow("01J0000000000000000000000A", actor.String(), "redeem", "invite_code", "ZZZZ2222", "failure", nil, nil, ts))

	logs, err := repo.List(context.Background(), &audit.AuditLogFilter{
		ActorID: &actor, Action: &action, Outcome: &outcome, Limit: 10, Offset: 20,
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, actor, logs[0].ActorID)
	assert.Equal(t, "UNIT_FULL", logs[0].Reason)
	assert.Equal(t, false, logs[0].Details["replayed"])
	assert.Empty(t, logs[1].Reason)
	assert.Nil(t, logs[1].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Count(t *testing.T) {
	repo, mock := newMockAuditRepository(t)
	resource := "ABCD2345"
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM audit_logs WHERE resource_id = $1 AND timestamp >= $2`)).
		WithArgs(resource, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background(), &audit.AuditLogFilter{ResourceID: &resource, StartTime: &since, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryAuditRepository_ListNewestFirstWithPaging(t *testing.T) {
	repo := repositories.NewMemoryAuditRepository()
	actor := uuid.New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, repo.Create(context.Background(), &audit.AuditLog{
			ID: id, ActorID: actor, Action: "redeem", Outcome: audit.OutcomeSuccess, Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &audit.AuditLog{ID: "X", ActorID: uuid.New(), Action: "remove", Timestamp: base}))

	logs, err := repo.List(context.Background(), &audit.AuditLogFilter{ActorID: &actor, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "C", logs[0].ID)
	assert.Equal(t, "B", logs[1].ID)

	n, err := repo.Count(context.Background(), &audit.AuditLogFilter{ActorID: &actor})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	end := base.Add(time.Minute)
	logs, err = repo.List(context.Background(), &audit.AuditLogFilter{ActorID: &actor, EndTime: &end})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = repo.List(context.Background(), &audit.AuditLogFilter{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
