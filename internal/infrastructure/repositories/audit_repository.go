package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/audit"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
)

type auditRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewAuditRepository creates a new instance of AuditRepository
func NewAuditRepository(database *db.Database, logger *logrus.Logger) ports.AuditRepository {
	return &auditRepository{
		db:     database,
		logger: logger,
	}
}

// Create appends an audit log entry. Rows are never updated or deleted.
func (r *auditRepository) Create(ctx context.Context, log *audit.AuditLog) error {
	// Set timestamp if not provided
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	// Convert details to JSON if not nil
	var detailsJSON sql.NullString
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return err
		}
		detailsJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO audit_logs (
			id, actor_id, action, resource, resource_id,
			outcome, reason, details, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.DB.ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.Action,
		log.Resource,
		log.ResourceID,
		string(log.Outcome),
		log.Reason,
		detailsJSON,
		log.Timestamp,
	)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"actor_id": log.ActorID, "action": log.Action}).WithError(err).Error("db: failed to insert audit log")
		}
		return err
	}
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"actor_id": log.ActorID, "action": log.Action, "resource_id": log.ResourceID}).Debug("db: audit log inserted")
	}
	return nil
}

// List retrieves audit logs based on the provided filter
func (r *auditRepository) List(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
	query, args := r.buildListQuery(filter, false)
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"query": query, "args": args}).Debug("db: executing audit list query")
	}
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"query": query}).WithError(err).Error("db: failed to execute audit list query")
		}
		return nil, err
	}
	defer rows.Close()

	logs := make([]*audit.AuditLog, 0)
	for rows.Next() {
		log := &audit.AuditLog{}
		var (
			outcome     string
			reason      sql.NullString
			detailsJSON sql.NullString
		)
		err := rows.Scan(
			&log.ID,
			&log.ActorID,
			&log.Action,
			&log.Resource,
			&log.ResourceID,
			&outcome,
			&reason,
			&detailsJSON,
			&log.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		log.Outcome = audit.Outcome(outcome)
		log.Reason = reason.String

		// Parse details JSON if present
		if detailsJSON.Valid && detailsJSON.String != "" {
			var details map[string]any
			if err := json.Unmarshal([]byte(detailsJSON.String), &details); err == nil {
				log.Details = details
			}
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("db: error iterating audit list rows")
		}
		return nil, err
	}

	return logs, nil
}

// Count returns the total number of audit logs matching the filter
func (r *auditRepository) Count(ctx context.Context, filter *audit.AuditLogFilter) (int, error) {
	query, args := r.buildListQuery(filter, true)

	var count int
	err := r.db.DB.GetContext(ctx, &count, query, args...)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"query": query}).WithError(err).Error("db: failed to execute audit count query")
		}
		return 0, err
	}
	return count, nil
}

// buildListQuery constructs the SQL query and arguments for listing/counting audit logs
func (r *auditRepository) buildListQuery(filter *audit.AuditLogFilter, isCount bool) (string, []interface{}) {
	var selectClause string
	if isCount {
		selectClause = "SELECT COUNT(*)"
	} else {
		selectClause = `SELECT
			id, actor_id, action, resource, resource_id,
			outcome, reason, details, timestamp`
	}

	query := selectClause + " FROM audit_logs"
	var conditions []string
	var args []interface{}
	argIndex := 1
	add := func(cond string, v any) {
		conditions = append(conditions, cond+" $"+strconv.Itoa(argIndex))
		args = append(args, v)
		argIndex++
	}

	if filter != nil {
		if filter.ActorID != nil {
			add("actor_id =", *filter.ActorID)
		}
		if filter.Action != nil {
			add("action =", string(*filter.Action))
		}
		if filter.Outcome != nil {
			add("outcome =", string(*filter.Outcome))
		}
		if filter.ResourceID != nil {
			add("resource_id =", *filter.ResourceID)
		}
		if filter.StartTime != nil {
			add("timestamp >=", *filter.StartTime)
		}
		if filter.EndTime != nil {
			add("timestamp <=", *filter.EndTime)
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// ULIDs sort by creation time, so id breaks timestamp ties deterministically
	if !isCount {
		query += " ORDER BY timestamp DESC, id DESC"

		if filter != nil {
			if filter.Limit > 0 {
				query += " LIMIT $" + strconv.Itoa(argIndex)
				args = append(args, filter.Limit)
				argIndex++
			}
			if filter.Offset > 0 {
				query += " OFFSET $" + strconv.Itoa(argIndex)
				args = append(args, filter.Offset)
			}
		}
	}

	return query, args
}

// MemoryAuditRepository is an append-only in-process audit log.
type MemoryAuditRepository struct {
	mu   sync.RWMutex
	logs []*audit.AuditLog
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Create(_ context.Context, log *audit.AuditLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	cp := *log
	r.mu.Lock()
	r.logs = append(r.logs, &cp)
	r.mu.Unlock()
	return nil
}

func (r *MemoryAuditRepository) matching(filter *audit.AuditLogFilter) []*audit.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*audit.AuditLog, 0)
	for _, l := range r.logs {
		if filter != nil {
			if filter.ActorID != nil && l.ActorID != *filter.ActorID {
				continue
			}
			if filter.Action != nil && l.Action != string(*filter.Action) {
				continue
			}
			if filter.Outcome != nil && l.Outcome != *filter.Outcome {
				continue
			}
			if filter.ResourceID != nil && l.ResourceID != *filter.ResourceID {
				continue
			}
			if filter.StartTime != nil && l.Timestamp.Before(*filter.StartTime) {
				continue
			}
			if filter.EndTime != nil && l.Timestamp.After(*filter.EndTime) {
				continue
			}
		}
		cp := *l
		out = append(out, &cp)
	}
	return out
}

func (r *MemoryAuditRepository) List(_ context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
	logs := r.matching(filter)
	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].Timestamp.Equal(logs[j].Timestamp) {
			return logs[i].Timestamp.After(logs[j].Timestamp)
		}
		return logs[i].ID > logs[j].ID
	})
	if filter == nil {
		return logs, nil
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(logs) {
			return []*audit.AuditLog{}, nil
		}
		logs = logs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(logs) {
		logs = logs[:filter.Limit]
	}
	return logs, nil
}

func (r *MemoryAuditRepository) Count(_ context.Context, filter *audit.AuditLogFilter) (int, error) {
	return len(r.matching(filter)), nil
}

// Entries returns every entry for actorID in insertion order.
func (r *MemoryAuditRepository) Entries(actorID uuid.UUID) []*audit.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*audit.AuditLog, 0)
	for _, l := range r.logs {
		if l.ActorID == actorID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}
