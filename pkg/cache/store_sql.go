package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists cache records in the shared SQLite database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQLite-backed cache store.
func NewSQLStore(db *sql.DB) *SQLStore {
	if db == nil {
		panic("database handle cannot be nil")
	}
	return &SQLStore{db: db}
}

// Get returns the record for the signature, or ErrMiss when absent.
func (s *SQLStore) Get(ctx context.Context, signature string) (*Record, error) {
	var (
		rec      Record
		params   sql.NullString
		cachedAt string
	)

	row := s.db.QueryRowContext(ctx, `
		SELECT signature, endpoint, params_json, response_json, cached_at
		FROM api_cache
		WHERE signature = ?
	`, signature)

	if err := row.Scan(&rec.Signature, &rec.Endpoint, &params, &rec.Payload, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("query cache record: %w", err)
	}

	rec.Params = params.String

	ts, err := time.Parse(time.RFC3339, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: signature %s has unparseable cached_at %q",
			ErrInvalidRecord, signature, cachedAt)
	}
	rec.CachedAt = ts

	return &rec, nil
}

// Put stores the record, replacing any prior record for the signature.
func (s *SQLStore) Put(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_cache (signature, endpoint, params_json, response_json, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			endpoint = excluded.endpoint,
			params_json = excluded.params_json,
			response_json = excluded.response_json,
			cached_at = excluded.cached_at
	`, rec.Signature, rec.Endpoint, rec.Params, []byte(rec.Payload),
		rec.CachedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store cache record: %w", err)
	}
	return nil
}

// Sweep deletes records cached before cutoff.
func (s *SQLStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	// cached_at is fixed-width RFC3339 UTC, so string comparison orders
	// chronologically.
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM api_cache WHERE cached_at < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("sweep cache records: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return int(n), nil
}
