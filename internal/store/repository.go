package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/blackmichael/social-enrichment/internal/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS social_cache (
		lead_id    TEXT NOT NULL,
		network    TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (lead_id, network)
	)`,
	`CREATE TABLE IF NOT EXISTS cursors (
		service      TEXT PRIMARY KEY,
		cursor_value BIGINT NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
}

// Repository implements domain.CacheStore and domain.CursorRepository on
// top of PostgreSQL or SQLite.
type Repository struct {
	db     *sql.DB
	driver string
}

// NewRepository opens the database for driver at dsn, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection keeps an in-memory database shared and serializes
		// writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db, driver: driver}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// GetSocialCache loads the cache document for a lead and network.
func (r *Repository) GetSocialCache(ctx context.Context, leadID, network string) (*domain.SocialCache, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT data FROM social_cache WHERE lead_id = ? AND network = ?`),
		leadID, network,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("query social cache (lead=%s, network=%s): %w", leadID, network, err)
	}

	var cache domain.SocialCache
	if err := json.Unmarshal([]byte(data), &cache); err != nil {
		return nil, fmt.Errorf("decode social cache (lead=%s, network=%s): %w", leadID, network, err)
	}
	return &cache, nil
}

// SaveSocialCache upserts the cache document for a lead and network.
func (r *Repository) SaveSocialCache(ctx context.Context, leadID, network string, cache *domain.SocialCache) error {
	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("encode social cache: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO social_cache (lead_id, network, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lead_id, network) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`),
		leadID, network, string(data), time.Now().UTC(),
	)
	return err
}

// DeleteSocialCache removes the cache document for a lead and network.
func (r *Repository) DeleteSocialCache(ctx context.Context, leadID, network string) error {
	_, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM social_cache WHERE lead_id = ? AND network = ?`),
		leadID, network,
	)
	return err
}

// DeleteStaleCaches removes cache documents not refreshed within maxAge.
// Returns the number of rows deleted.
func (r *Repository) DeleteStaleCaches(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM social_cache WHERE updated_at < ?`),
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale caches: %w", err)
	}
	return res.RowsAffected()
}

// GetCursor retrieves the saved event cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT cursor_value FROM cursors WHERE service = ?`), service,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the event cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`),
		service, cursor, time.Now().UTC(),
	)
	return err
}

// rebind rewrites ? placeholders to $N for postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
