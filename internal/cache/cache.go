// Package cache implements the learning cache (spec §4.11): a SQLite read
// model lazily rebuilt from the learning journal's tail, giving readers
// indexed lookup (by category, full-text over fact) without holding the
// whole learning set in process memory.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"sunwellmem/internal/journal"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/memtypes"
)

// Cache is a SQLite-backed read model of the learning journal.
type Cache struct {
	db *sql.DB
}

// journalSource is the subset of *journal.Journal the cache needs to sync
// from, kept narrow so tests can substitute a fake.
type journalSource interface {
	ReadFrom(offset int) ([]journal.Entry, error)
}

// Open opens (creating if necessary) the cache database at path, applying
// the teacher's single-writer WAL pragma sequence, and ensures the schema
// exists.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cache: create dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.CacheDebug("cache: failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.CacheDebug("cache: failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.CacheDebug("cache: failed to set synchronous=NORMAL: %v", err)
	}

	c := &Cache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// schema matches spec §6 exactly: learnings(id, fact, category, confidence,
// created_at, superseded_by) plus an FTS5 virtual table mirroring fact, and
// a meta(key, value) table holding the journal high-water mark.
func (c *Cache) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS learnings (
			id TEXT PRIMARY KEY,
			fact TEXT NOT NULL,
			category TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TEXT NOT NULL,
			superseded_by TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS learnings_fts USING fts5(
			fact, content='learnings', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS learnings_ai AFTER INSERT ON learnings BEGIN
			INSERT INTO learnings_fts(rowid, fact) VALUES (new.rowid, new.fact);
		END`,
		`CREATE TRIGGER IF NOT EXISTS learnings_ad AFTER DELETE ON learnings BEGIN
			INSERT INTO learnings_fts(learnings_fts, rowid, fact) VALUES('delete', old.rowid, old.fact);
		END`,
		`CREATE TRIGGER IF NOT EXISTS learnings_au AFTER UPDATE ON learnings BEGIN
			INSERT INTO learnings_fts(learnings_fts, rowid, fact) VALUES('delete', old.rowid, old.fact);
			INSERT INTO learnings_fts(rowid, fact) VALUES (new.rowid, new.fact);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("cache: schema init: %w", err)
		}
	}
	return nil
}

// Add upserts one learning's read-model row.
func (c *Cache) Add(l memtypes.Learning) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO learnings (id, fact, category, confidence, created_at, superseded_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Fact, l.Category, l.Confidence, l.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"), nullable(l.SupersededBy),
	)
	if err != nil {
		return fmt.Errorf("cache: add %s: %w", l.ID, err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// highWaterKey is the meta table key tracking the last journal sequence
// synced into this cache.
const highWaterKey = "journal_high_water"

// SyncFromJournal reads every journal entry newer than the cache's
// recorded high-water mark and upserts each into the read model, advancing
// the mark. Returns the number of entries synced.
func (c *Cache) SyncFromJournal(j journalSource) (int, error) {
	offset, err := c.highWaterMark()
	if err != nil {
		return 0, err
	}

	entries, err := j.ReadFrom(offset + 1)
	if err != nil {
		return 0, fmt.Errorf("cache: read journal tail: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("cache: begin sync tx: %w", err)
	}

	maxSeq := offset
	for _, e := range entries {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO learnings (id, fact, category, confidence, created_at, superseded_by)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Fact, e.Category, e.Confidence, e.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"), nullable(e.SupersededBy),
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("cache: sync entry seq=%d: %w", e.Seq, err)
		}
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, highWaterKey, fmt.Sprintf("%d", maxSeq)); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("cache: update high-water mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache: commit sync tx: %w", err)
	}

	logging.CacheDebug("cache: synced %d entries, high-water now %d", len(entries), maxSeq)
	return len(entries), nil
}

func (c *Cache) highWaterMark() (int, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, highWaterKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read high-water mark: %w", err)
	}
	var mark int
	if _, err := fmt.Sscanf(value, "%d", &mark); err != nil {
		return 0, nil
	}
	return mark, nil
}

// Row is one learnings-table read.
type Row struct {
	ID           string
	Fact         string
	Category     string
	Confidence   float64
	CreatedAt    string
	SupersededBy string
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		var superseded sql.NullString
		if err := rows.Scan(&r.ID, &r.Fact, &r.Category, &r.Confidence, &r.CreatedAt, &superseded); err != nil {
			return nil, fmt.Errorf("cache: scan row: %w", err)
		}
		r.SupersededBy = superseded.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetByCategory returns learnings in a category in journal order (spec §4.11
// scenario S2: oldest-recorded first, not most-recent-first).
func (c *Cache) GetByCategory(category string) ([]Row, error) {
	rows, err := c.db.Query(
		`SELECT id, fact, category, confidence, created_at, superseded_by FROM learnings
		 WHERE category = ? ORDER BY created_at ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("cache: query by category: %w", err)
	}
	return scanRows(rows)
}

// SearchFacts performs a full-text search over fact text, most relevant
// first (FTS5's bm25 ranking).
func (c *Cache) SearchFacts(query string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.Query(
		`SELECT l.id, l.fact, l.category, l.confidence, l.created_at, l.superseded_by
		 FROM learnings_fts f JOIN learnings l ON l.rowid = f.rowid
		 WHERE learnings_fts MATCH ? ORDER BY bm25(learnings_fts) LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("cache: fts search: %w", err)
	}
	return scanRows(rows)
}

// GetRecent returns the most recently created learnings, up to limit.
func (c *Cache) GetRecent(limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.Query(
		`SELECT id, fact, category, confidence, created_at, superseded_by FROM learnings
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache: query recent: %w", err)
	}
	return scanRows(rows)
}

// Count returns the number of learnings currently cached.
func (c *Cache) Count() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM learnings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
