package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxConn is satisfied by *pgxpool.Pool and pgx.Tx.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS submission_records (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	version    BIGINT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// JournalStore serves reads from memory and writes every saved record
// through to Postgres. Journal failures are logged, not returned, so a
// database outage never stalls a pipeline.
type JournalStore struct {
	*InMemoryStore
	db     pgxConn
	logger *slog.Logger
}

// NewJournalStore creates the journal table if needed and restores any
// journaled records into memory.
func NewJournalStore(ctx context.Context, db pgxConn, logger *slog.Logger) (*JournalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("journal database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(ctx, journalSchema); err != nil {
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	s := &JournalStore{InMemoryStore: NewInMemoryStore(), db: db, logger: logger}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JournalStore) restore(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT record FROM submission_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return Record{}, err
		}
		var rec Record
		err := json.Unmarshal(raw, &rec)
		return rec, err
	})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	for _, rec := range records {
		_ = s.InMemoryStore.Save(ctx, rec)
	}
	s.logger.InfoContext(ctx, "submission journal restored", "records", len(records))
	return nil
}

// Save stores rec in memory and journals it.
func (s *JournalStore) Save(ctx context.Context, rec Record) error {
	if err := s.InMemoryStore.Save(ctx, rec); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO submission_records (id, status, version, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, version = EXCLUDED.version,
		    record = EXCLUDED.record, updated_at = EXCLUDED.updated_at
		WHERE submission_records.version < EXCLUDED.version`,
		rec.ID, string(rec.Status), int64(rec.Version), raw, rec.Timestamp, rec.UpdatedAt,
	)
	if err != nil {
		s.logger.WarnContext(ctx, "journal write failed", "submission_id", rec.ID, "error", err)
	}
	return nil
}
