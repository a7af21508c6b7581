// Package store persists storage-engine audit entries to postgres so the
// retention/compliance job can report on them after the in-memory instance
// is gone.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-schedule-ingest/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ArchiveAuditEntries copies entries into the archive, skipping ids already
// present so repeated flushes stay idempotent.
func (s *Store) ArchiveAuditEntries(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO audit_archive (id, recorded_at, action, redacted_key, user_id, success)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Timestamp, e.Action, e.Key, e.UserID, e.Success,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListAuditEntries returns archived entries in a window, oldest first.
func (s *Store) ListAuditEntries(ctx context.Context, from, to time.Time) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recorded_at, action, redacted_key, user_id, success
		 FROM audit_archive
		 WHERE recorded_at >= $1 AND recorded_at <= $2
		 ORDER BY recorded_at`, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Key, &e.UserID, &e.Success); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeBefore drops archived entries older than cutoff and reports how many
// went away.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_archive WHERE recorded_at < $1`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
