package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

// Cache is an exact-match cache of accepted translations backed by SQLite.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS translation_cache (
	text_hash   TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	provider    TEXT NOT NULL,
	translated  TEXT NOT NULL,
	confidence  REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	ttl_ms      INTEGER NOT NULL,
	PRIMARY KEY (text_hash, target_lang)
);
`

// New creates a Cache in db with the given entry lifetime.
func New(db *sql.DB, ttl time.Duration) (*Cache, error) {
	if err := sqlitedb.Migrate(db, createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// HashText computes a SHA-256 hash of the source text.
func HashText(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// Get returns the cached translation of text into targetLang, if present and fresh.
func (c *Cache) Get(ctx context.Context, targetLang, text string) (models.CacheEntry, bool) {
	e := models.CacheEntry{TextHash: HashText(text), TargetLang: targetLang}
	var createdMs, ttlMs int64

	err := c.db.QueryRowContext(ctx,
		`SELECT provider, translated, confidence, created_at, ttl_ms FROM translation_cache
		 WHERE text_hash = ? AND target_lang = ?`,
		e.TextHash, targetLang,
	).Scan(&e.Provider, &e.Translated, &e.Confidence, &createdMs, &ttlMs)
	if err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	e.CreatedAt = time.UnixMilli(createdMs)
	e.TTL = time.Duration(ttlMs) * time.Millisecond
	if time.Since(e.CreatedAt) > e.TTL {
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	c.hits.Add(1)
	return e, true
}

// Put stores an accepted translation of text.
func (c *Cache) Put(ctx context.Context, text string, e models.CacheEntry) error {
	if e.TargetLang == "" {
		return errors.New("cache put: empty target language")
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_cache
		 (text_hash, target_lang, provider, translated, confidence, created_at, ttl_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		HashText(text), e.TargetLang, e.Provider, e.Translated, e.Confidence,
		time.Now().UnixMilli(), c.ttl.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	var res sql.Result
	var err error
	if expiredOnly {
		res, err = c.db.ExecContext(ctx,
			`DELETE FROM translation_cache WHERE created_at + ttl_ms < ?`, time.Now().UnixMilli())
	} else {
		res, err = c.db.ExecContext(ctx, `DELETE FROM translation_cache`)
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}
