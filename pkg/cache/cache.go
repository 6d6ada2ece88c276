// Package cache implements the on-disk fetch cache from spec.md §6:
// `<user-cache-root>/<tool-name>/<hash-of-reference>/…`, with the hash
// covering the full reference string (sub-path and commit/digest included).
// Metadata lives in a small embedded-schema SQLite database
// (modernc.org/sqlite, pure Go, plus golang-migrate/v4 for the schema —
// both already declared direct in the teacher's go.mod but unused by its
// visible code); a gofrs/flock file lock guards concurrent writers to the
// same entry across processes, the cross-process safety margin a single
// in-process mutex can't provide for a CLI tool invoked repeatedly.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ToolName is the cache's top-level directory segment under the user cache
// root (spec.md §6's "<tool-name>").
const ToolName = "forge"

// Cache is an on-disk registry-fetch cache rooted at a directory, with
// metadata tracked in an embedded SQLite database.
type Cache struct {
	root string
	db   *sql.DB
}

// Open opens (creating if necessary) a Cache rooted at root, running its
// embedded migrations. Callers should defer Close.
func Open(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root %s: %w", root, err)
	}

	dbPath := filepath.Join(root, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache schema: %w", err)
	}

	return &Cache{root: root, db: db}, nil
}

func migrateSchema(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("initialising migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("constructing migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// HashReference hashes ref (the full string, including any sub-path or
// commit/digest suffix) into the cache's directory-naming key.
func HashReference(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) entryDir(hash string) string {
	return filepath.Join(c.root, hash)
}

// Lookup returns the cached directory for ref if present both in the
// metadata database and on disk.
func (c *Cache) Lookup(ref string) (string, bool) {
	hash := HashReference(ref)
	var path string
	err := c.db.QueryRow(`SELECT path FROM entries WHERE hash = ?`, hash).Scan(&path)
	if err != nil {
		return "", false
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return "", false
	}
	return path, true
}

// Store takes ownership of the contents of sourceDir (a freshly-fetched,
// disposable temp directory) and moves them into the cache under ref's
// hash, recording the entry. A gofrs/flock per-entry lock file serialises
// concurrent fetches of the same reference across processes — the second
// process to arrive finds the entry already populated and reuses it rather
// than overwriting a half-written tree.
func (c *Cache) Store(ref, sourceDir string) (string, error) {
	hash := HashReference(ref)
	dest := c.entryDir(hash)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	lock := flock.New(dest + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("locking cache entry %s: %w", hash, err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(dest); err == nil {
		return dest, nil // another process already populated this entry
	}

	if err := os.Rename(sourceDir, dest); err != nil {
		if copyErr := copyTree(sourceDir, dest); copyErr != nil {
			return "", fmt.Errorf("moving %s into cache: %w", sourceDir, copyErr)
		}
		os.RemoveAll(sourceDir)
	}

	_, err := c.db.Exec(
		`INSERT INTO entries (hash, reference, path, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET reference = excluded.reference, path = excluded.path, fetched_at = excluded.fetched_at`,
		hash, ref, dest, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("recording cache entry: %w", err)
	}
	return dest, nil
}

// copyTree is the cross-device fallback for Store's rename, for when
// sourceDir and the cache root live on different filesystems.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Prune removes every recorded cache entry older than maxAge, both its
// directory and its metadata row (`forge cache prune`). maxAge <= 0 removes
// nothing. Directories under the cache root that have no metadata row are
// not touched.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	var removed int
	rows, err := c.db.Query(`SELECT hash, path, fetched_at FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	type entry struct {
		hash, path string
		fetchedAt  int64
	}
	var stale []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.hash, &e.path, &e.fetchedAt); err != nil {
			return removed, fmt.Errorf("scanning cache entry: %w", err)
		}
		if maxAge > 0 && time.Since(time.Unix(e.fetchedAt, 0)) > maxAge {
			stale = append(stale, e)
		}
	}

	for _, e := range stale {
		if err := os.RemoveAll(e.path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.path, err)
		}
		if _, err := c.db.Exec(`DELETE FROM entries WHERE hash = ?`, e.hash); err != nil {
			return removed, fmt.Errorf("deleting entry %s: %w", e.hash, err)
		}
		removed++
	}
	return removed, nil
}

// Entries lists every recorded cache entry, for `forge cache inspect`.
type Entries struct {
	Hash      string
	Reference string
	Path      string
	FetchedAt time.Time
}

// List returns every cache entry in the metadata database.
func (c *Cache) List() ([]Entries, error) {
	rows, err := c.db.Query(`SELECT hash, reference, path, fetched_at FROM entries ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var out []Entries
	for rows.Next() {
		var e Entries
		var fetchedAt int64
		if err := rows.Scan(&e.Hash, &e.Reference, &e.Path, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		e.FetchedAt = time.Unix(fetchedAt, 0)
		out = append(out, e)
	}
	return out, nil
}
