// Package cachedb is the durable SerpAnalysisCache, one row per
// (keyword, domain) in SQLite.
package cachedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/seo-forecaster/backend/cachedb/migrations"
	"github.com/seo-forecaster/backend/serp"
)

// DB implements serp.Cache.
type DB struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ serp.Cache = (*DB)(nil)

// Open opens or creates the cache database at path and applies migrations.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	d := &DB{db: sqlDB, logger: logger.Named("cachedb")}
	if err := d.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// runMigrations applies embedded migrations. The migrator is not closed
// because closing it closes the shared *sql.DB.
func (d *DB) runMigrations() error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(d.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	version, _, _ := m.Version()
	d.logger.Debug("cache schema ready", zap.Uint("version", version))
	return nil
}

// Get implements serp.Cache.
func (d *DB) Get(ctx context.Context, key serp.Key) (*serp.EnrichedSerp, bool, error) {
	var payload string
	err := d.db.QueryRowContext(ctx,
		`SELECT payload FROM serp_analysis_cache WHERE keyword = ? AND domain = ?`,
		key.Keyword, key.Domain).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	var entry serp.EnrichedSerp
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, true, nil
}

// Put implements serp.Cache. It replaces any entry stored under key.
func (d *DB) Put(ctx context.Context, key serp.Key, entry *serp.EnrichedSerp) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	fetched := entry.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO serp_analysis_cache (keyword, domain, payload, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (keyword, domain) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`,
		key.Keyword, key.Domain, string(payload), fetched.UTC())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete implements serp.Cache. Deleting a missing key is not an error.
func (d *DB) Delete(ctx context.Context, key serp.Key) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM serp_analysis_cache WHERE keyword = ? AND domain = ?`, key.Keyword, key.Domain)
	return err
}

// Count returns the number of cached entries. It backs the cache size gauge.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM serp_analysis_cache`).Scan(&n)
	return n, err
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
