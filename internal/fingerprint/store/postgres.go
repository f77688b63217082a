package store

import (
	"context"
	"database/sql"
	"fmt"
)

const createFingerprintTable = `
CREATE TABLE IF NOT EXISTS funded_fingerprints (
	fingerprint TEXT PRIMARY KEY,
	funded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the funded set in a table, one row per hash.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore ensures the table exists and returns the store.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createFingerprintTable); err != nil {
		return nil, fmt.Errorf("create fingerprint table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Load returns every hash ordered by funding time.
func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM funded_fingerprints ORDER BY funded_at, fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return hashes, nil
}

// Persist inserts hash, ignoring conflicts.
func (s *PostgresStore) Persist(ctx context.Context, hash string, _ []string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO funded_fingerprints (fingerprint) VALUES ($1) ON CONFLICT (fingerprint) DO NOTHING`,
		hash,
	)
	if err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}
