// Package postgres provides a Postgres-backed tracking store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for tracking rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store persists tracked sites in Postgres. The fingerprint/documents
// pair is replaced in a single UPDATE so the two never drift apart; a
// position column preserves per-user insertion order.
type Store struct {
	pool  pgxIface
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.Table)
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxIface, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "tracked_sites"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// AddSite inserts a tracking row; an existing (user, url) pair yields
// watch.ErrAlreadyTracked.
func (s *Store) AddSite(ctx context.Context, userID, url, fingerprint string, documents []watch.DocumentRef) error {
	docsJSON, err := marshalDocuments(documents)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (user_id, url, fingerprint, documents)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, url) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, userID, url, fingerprint, docsJSON)
	if err != nil {
		return fmt.Errorf("insert tracked site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return watch.ErrAlreadyTracked
	}
	return nil
}

// RemoveSite deletes the tracking row and reports whether one existed.
func (s *Store) RemoveSite(ctx context.Context, userID, url string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND url = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, userID, url)
	if err != nil {
		return false, fmt.Errorf("delete tracked site: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSites returns the user's sites in insertion order.
func (s *Store) ListSites(ctx context.Context, userID string) ([]watch.TrackedSite, error) {
	query := fmt.Sprintf(`
SELECT url, fingerprint, documents
FROM %s
WHERE user_id = $1
ORDER BY position`, s.table)
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tracked sites: %w", err)
	}
	defer rows.Close()

	sites := []watch.TrackedSite{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked sites: %w", err)
	}
	return sites, nil
}

// GetSite looks up one tracked site by URL.
func (s *Store) GetSite(ctx context.Context, userID, url string) (watch.TrackedSite, bool, error) {
	query := fmt.Sprintf(`
SELECT url, fingerprint, documents
FROM %s
WHERE user_id = $1 AND url = $2`, s.table)
	rows, err := s.pool.Query(ctx, query, userID, url)
	if err != nil {
		return watch.TrackedSite{}, false, fmt.Errorf("get tracked site: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return watch.TrackedSite{}, false, rows.Err()
	}
	site, err := scanSite(rows)
	if err != nil {
		return watch.TrackedSite{}, false, err
	}
	return site, true, nil
}

// UpdateSite replaces fingerprint and documents in one statement. A
// missing key affects zero rows and is a silent no-op, never an
// implicit insert.
func (s *Store) UpdateSite(ctx context.Context, userID, url, fingerprint string, documents []watch.DocumentRef) error {
	docsJSON, err := marshalDocuments(documents)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET fingerprint = $3, documents = $4
WHERE user_id = $1 AND url = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, userID, url, fingerprint, docsJSON); err != nil {
		return fmt.Errorf("update tracked site: %w", err)
	}
	return nil
}

// ForEachSite streams every tracked row to the visitor. The result set
// is a point-in-time snapshot under Postgres MVCC, so visitors may
// issue store mutations while iterating.
func (s *Store) ForEachSite(ctx context.Context, visit func(userID string, site watch.TrackedSite) error) error {
	query := fmt.Sprintf(`
SELECT user_id, url, fingerprint, documents
FROM %s
ORDER BY user_id, position`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("scan tracked sites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID   string
			site     watch.TrackedSite
			docsJSON []byte
		)
		if err := rows.Scan(&userID, &site.URL, &site.Fingerprint, &docsJSON); err != nil {
			return fmt.Errorf("scan tracked site row: %w", err)
		}
		if err := unmarshalDocuments(docsJSON, &site.Documents); err != nil {
			return err
		}
		if err := visit(userID, site); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tracked sites: %w", err)
	}
	return nil
}

func scanSite(rows pgx.Rows) (watch.TrackedSite, error) {
	var (
		site     watch.TrackedSite
		docsJSON []byte
	)
	if err := rows.Scan(&site.URL, &site.Fingerprint, &docsJSON); err != nil {
		return watch.TrackedSite{}, fmt.Errorf("scan tracked site row: %w", err)
	}
	if err := unmarshalDocuments(docsJSON, &site.Documents); err != nil {
		return watch.TrackedSite{}, err
	}
	return site, nil
}

func marshalDocuments(documents []watch.DocumentRef) ([]byte, error) {
	if documents == nil {
		documents = []watch.DocumentRef{}
	}
	data, err := json.Marshal(documents)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	return data, nil
}

func unmarshalDocuments(data []byte, into *[]watch.DocumentRef) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("unmarshal documents: %w", err)
	}
	if len(*into) == 0 {
		*into = nil
	}
	return nil
}
