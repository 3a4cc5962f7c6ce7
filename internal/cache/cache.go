// Package cache persists the last-known narration-server payload per
// workspace, so a new session renders immediately while its first refresh is
// still in flight. Snapshots live in a small SQLite database keyed by scope,
// which is the absolute workspace path.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/narravoxlabs/narravox/internal/studio"
	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by [Store.LoadSnapshot] when no snapshot exists
// for the scope.
var ErrNoSnapshot = errors.New("cache: no snapshot for scope")

// Store is a SQLite-backed snapshot store.
type Store struct {
	db    *sql.DB
	path  string
	clock func() time.Time
}

var _ studio.SnapshotStore = (*Store)(nil)

// Open creates or opens the snapshot database at path, creating parent
// directories as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache: database path must not be empty")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping sqlite: %w", err)
	}

	s := &Store{db: db, path: path, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS snapshots (
    scope TEXT PRIMARY KEY,
    cache_key TEXT NOT NULL,
    payload TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// SaveSnapshot stores payload for scope, replacing any previous snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, scope, cacheKey string, payload []byte) error {
	if scope == "" {
		return errors.New("cache: scope must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots(scope, cache_key, payload, updated_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET
		   cache_key = excluded.cache_key,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		scope, cacheKey, string(payload), s.clock().UTC().Unix())
	if err != nil {
		return fmt.Errorf("cache: save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored payload and its cache key for scope.
// Returns [ErrNoSnapshot] when the scope has never been saved.
func (s *Store) LoadSnapshot(ctx context.Context, scope string) (string, []byte, error) {
	var (
		cacheKey string
		payload  string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, payload FROM snapshots WHERE scope = ?`, scope)
	if err := row.Scan(&cacheKey, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fmt.Errorf("%w: %s", ErrNoSnapshot, scope)
		}
		return "", nil, fmt.Errorf("cache: load snapshot: %w", err)
	}
	return cacheKey, []byte(payload), nil
}

// DeleteSnapshot removes the snapshot for scope. Reports whether a row was
// deleted.
func (s *Store) DeleteSnapshot(ctx context.Context, scope string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE scope = ?`, scope)
	if err != nil {
		return false, fmt.Errorf("cache: delete snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cache: rows affected: %w", err)
	}
	return affected > 0, nil
}

// ScopeInfo describes one stored snapshot.
type ScopeInfo struct {
	Scope     string
	CacheKey  string
	UpdatedAt time.Time
}

// Scopes lists stored snapshots ordered by scope.
func (s *Store) Scopes(ctx context.Context) ([]ScopeInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope, cache_key, updated_at FROM snapshots ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("cache: list scopes: %w", err)
	}
	defer rows.Close()

	var infos []ScopeInfo
	for rows.Next() {
		var (
			info ScopeInfo
			ts   int64
		)
		if err := rows.Scan(&info.Scope, &info.CacheKey, &ts); err != nil {
			return nil, fmt.Errorf("cache: scan scope: %w", err)
		}
		info.UpdatedAt = time.Unix(ts, 0).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Prune deletes snapshots last updated before cutoff. Returns the number of
// rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE updated_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache: prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
