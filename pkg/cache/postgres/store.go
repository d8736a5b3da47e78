// Package postgres provides a PostgreSQL-backed implementation of
// [cache.Store], letting multiple correction runs share one cache.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 24*time.Hour)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emendo-dev/emendo/pkg/cache"
)

var _ cache.Store = (*Store)(nil)

const ddlCorrections = `
CREATE TABLE IF NOT EXISTS corrections (
    key              TEXT         PRIMARY KEY,
    original         TEXT         NOT NULL,
    corrected        TEXT         NOT NULL,
    quality          REAL         NOT NULL DEFAULT 0,
    type             TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_accessed_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    access_count     INTEGER      NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_corrections_created_at
    ON corrections (created_at);

CREATE INDEX IF NOT EXISTS idx_corrections_last_accessed
    ON corrections (last_accessed_at);
`

// similarCandidates bounds how many recent entries a Similar call pulls
// back for in-process comparison.
const similarCandidates = 500

// Migrate creates the corrections table and its indexes. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlCorrections); err != nil {
		return fmt.Errorf("postgres cache: migrate: %w", err)
	}
	return nil
}

// Store is a PostgreSQL correction cache. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore connects to the database at dsn, verifies the connection,
// and runs [Migrate]. ttl bounds entry lifetime; zero disables expiry.
func NewStore(ctx context.Context, dsn string, ttl time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres cache: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres cache: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres cache: %w", err)
	}
	return &Store{pool: pool, ttl: ttl}, nil
}

// Get implements [cache.Store]. A hit bumps the access counter in the
// same statement so concurrent readers never lose counts.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	const q = `
		UPDATE corrections
		SET    last_accessed_at = now(),
		       access_count     = access_count + 1
		WHERE  key = $1
		  AND  ($2::bigint = 0 OR created_at >= now() - ($2::bigint * interval '1 microsecond'))
		RETURNING key, original, corrected, quality, type, created_at, last_accessed_at, access_count`

	row := s.pool.QueryRow(ctx, q, key, s.ttl.Microseconds())
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres cache: get: %w", err)
	}
	return e, nil
}

// Similar implements [cache.Store]. Candidate entries are fetched most
// recently used first and compared in process by Jaro-Winkler
// similarity over normalized text.
func (s *Store) Similar(ctx context.Context, text string, threshold float64) (*cache.Entry, error) {
	const q = `
		SELECT key, original, corrected, quality, type, created_at, last_accessed_at, access_count
		FROM   corrections
		WHERE  ($1::bigint = 0 OR created_at >= now() - ($1::bigint * interval '1 microsecond'))
		ORDER  BY last_accessed_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, s.ttl.Microseconds(), similarCandidates)
	if err != nil {
		return nil, fmt.Errorf("postgres cache: similar: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*cache.Entry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres cache: similar: %w", err)
	}

	norm := cache.Normalize(text)
	var (
		best    *cache.Entry
		bestSim float64
	)
	for _, e := range entries {
		sim := matchr.JaroWinkler(norm, cache.Normalize(e.Original), true)
		if sim >= threshold && sim > bestSim {
			best, bestSim = e, sim
		}
	}
	if best == nil {
		return nil, nil
	}

	const touch = `
		UPDATE corrections
		SET    last_accessed_at = now(),
		       access_count     = access_count + 1
		WHERE  key = $1`
	if _, err := s.pool.Exec(ctx, touch, best.Key); err != nil {
		return nil, fmt.Errorf("postgres cache: similar touch: %w", err)
	}
	best.AccessCount++
	return best, nil
}

// Put implements [cache.Store]. An existing entry under the same key is
// replaced and its access accounting reset.
func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	key := e.Key
	if key == "" {
		key = cache.Key(e.Original)
	}
	const q = `
		INSERT INTO corrections (key, original, corrected, quality, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET original         = EXCLUDED.original,
		    corrected        = EXCLUDED.corrected,
		    quality          = EXCLUDED.quality,
		    type             = EXCLUDED.type,
		    created_at       = now(),
		    last_accessed_at = now(),
		    access_count     = 0`

	if _, err := s.pool.Exec(ctx, q, key, e.Original, e.Corrected, e.Quality, e.Type); err != nil {
		return fmt.Errorf("postgres cache: put: %w", err)
	}
	return nil
}

// EvictExpired implements [cache.Store].
func (s *Store) EvictExpired(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	const q = `
		DELETE FROM corrections
		WHERE  created_at < now() - ($1::bigint * interval '1 microsecond')`

	tag, err := s.pool.Exec(ctx, q, s.ttl.Microseconds())
	if err != nil {
		return 0, fmt.Errorf("postgres cache: evict expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping verifies the database connection. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanEntry(row pgx.Row) (*cache.Entry, error) {
	var e cache.Entry
	if err := row.Scan(
		&e.Key,
		&e.Original,
		&e.Corrected,
		&e.Quality,
		&e.Type,
		&e.CreatedAt,
		&e.LastAccessedAt,
		&e.AccessCount,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
