package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
	"github.com/avatarctic/tenancy-engine/internal/infrastructure/db"
)

// PostgresDocumentStore keeps documents in one table keyed by (kind, id). Commit runs in a single
// SQL transaction: read versions are re-checked under row locks taken in key order, creates use
// ON CONFLICT DO NOTHING and updates are guarded by the expected version.
type PostgresDocumentStore struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewPostgresDocumentStore(database *db.Database, logger *logrus.Logger) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: database, logger: logger}
}

type documentRow struct {
	Kind    string `db:"kind"`
	ID      string `db:"id"`
	Version int64  `db:"version"`
	Body    []byte `db:"body"`
}

func (r documentRow) toDocument() *ports.Document {
	return &ports.Document{
		Key:     ports.DocumentKey{Kind: ports.DocumentKind(r.Kind), ID: r.ID},
		Version: r.Version,
		Body:    r.Body,
	}
}

func (s *PostgresDocumentStore) Get(ctx context.Context, key ports.DocumentKey) (*ports.Document, error) {
	var row documentRow
	err := s.db.DB.GetContext(ctx, &row,
		`SELECT kind, id, version, body FROM documents WHERE kind = $1 AND id = $2`,
		string(key.Kind), key.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return row.toDocument(), nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, kind ports.DocumentKind) ([]*ports.Document, error) {
	var rows []documentRow
	err := s.db.DB.SelectContext(ctx, &rows,
		`SELECT kind, id, version, body FROM documents WHERE kind = $1 ORDER BY id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", kind, err)
	}
	out := make([]*ports.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDocument())
	}
	return out, nil
}

func (s *PostgresDocumentStore) Commit(ctx context.Context, reads []ports.DocumentVersion, writes []ports.DocumentWrite) (err error) {
	tx, err := s.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	reads = append([]ports.DocumentVersion(nil), reads...)
	sort.Slice(reads, func(i, j int) bool { return reads[i].Key.String() < reads[j].Key.String() })
	for _, r := range reads {
		var current int64
		qerr := tx.GetContext(ctx, &current,
			`SELECT version FROM documents WHERE kind = $1 AND id = $2 FOR UPDATE`,
			string(r.Key.Kind), r.Key.ID)
		switch {
		case errors.Is(qerr, sql.ErrNoRows):
			current = 0
		case qerr != nil:
			return s.mapError(qerr, "lock", r.Key)
		}
		if current != r.Version {
			return ports.ErrVersionConflict
		}
	}

	for _, w := range writes {
		var res sql.Result
		var werr error
		if w.ExpectedVersion == 0 {
			res, werr = tx.ExecContext(ctx,
				`INSERT INTO documents (kind, id, version, body, updated_at) VALUES ($1, $2, 1, $3, NOW()) ON CONFLICT (kind, id) DO NOTHING`,
				string(w.Key.Kind), w.Key.ID, string(w.Body))
		} else {
			res, werr = tx.ExecContext(ctx,
				`UPDATE documents SET version = version + 1, body = $3, updated_at = NOW() WHERE kind = $1 AND id = $2 AND version = $4`,
				string(w.Key.Kind), w.Key.ID, string(w.Body), w.ExpectedVersion)
		}
		if werr != nil {
			return s.mapError(werr, "write", w.Key)
		}
		n, werr := res.RowsAffected()
		if werr != nil {
			return fmt.Errorf("failed to read affected rows for %s: %w", w.Key, werr)
		}
		if n == 0 {
			if w.CreateOnly {
				return ports.ErrDuplicateKey
			}
			return ports.ErrVersionConflict
		}
	}

	if err = tx.Commit(); err != nil {
		return s.mapError(err, "commit", ports.DocumentKey{})
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"reads": len(reads), "writes": len(writes)}).Debug("db: documents committed")
	}
	return nil
}

// mapError turns serialization failures and deadlocks into version conflicts so the coordinator
// retries them.
func (s *PostgresDocumentStore) mapError(err error, stage string, key ports.DocumentKey) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return ports.ErrVersionConflict
		case "23505":
			return ports.ErrDuplicateKey
		}
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"stage": stage, "key": key.String()}).WithError(err).Error("db: document commit failed")
	}
	return fmt.Errorf("failed to %s document %s: %w", stage, key, err)
}
