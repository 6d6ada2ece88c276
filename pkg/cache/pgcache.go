package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"
)

// PGCache is the optional shared-team cache backend (see DESIGN.md's
// pkg/cache entry): a Postgres-backed
// equivalent of Cache's SQLite table, for teams that want one fetch cache
// shared across CI runners rather than one per machine. Every pool query is
// auto-traced onto pkg/telemetry's spans via pgxotel.QueryTracer.
type PGCache struct {
	pool *pgxpool.Pool
}

// OpenPG connects to a shared Postgres cache at dsn and ensures its schema
// exists.
func OpenPG(ctx context.Context, dsn string) (*PGCache, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing cache database dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to shared cache database: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS forge_cache_entries (
			hash       TEXT PRIMARY KEY,
			reference  TEXT NOT NULL,
			path       TEXT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring shared cache schema: %w", err)
	}

	return &PGCache{pool: pool}, nil
}

// Close releases the connection pool.
func (c *PGCache) Close() { c.pool.Close() }

// Lookup returns the cached path for ref if the shared table has an entry
// (the referenced path still has to exist on whatever shared volume the
// cluster mounts — PGCache only tracks metadata, not artifact bytes).
func (c *PGCache) Lookup(ctx context.Context, ref string) (string, bool) {
	hash := HashReference(ref)
	var path string
	err := c.pool.QueryRow(ctx, `SELECT path FROM forge_cache_entries WHERE hash = $1`, hash).Scan(&path)
	if err != nil {
		return "", false
	}
	return path, true
}

// Store records a shared-cache entry. Unlike Cache.Store, PGCache never
// moves files itself — the caller is expected to have already placed the
// fetched tree on the shared volume at path.
func (c *PGCache) Store(ctx context.Context, ref, path string) error {
	hash := HashReference(ref)
	_, err := c.pool.Exec(ctx, `
		INSERT INTO forge_cache_entries (hash, reference, path, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO UPDATE SET reference = excluded.reference, path = excluded.path, fetched_at = excluded.fetched_at`,
		hash, ref, path, time.Now())
	if err != nil {
		return fmt.Errorf("recording shared cache entry: %w", err)
	}
	return nil
}
