//go:build sqlite_vec && cgo

package embedindex

import (
	"database/sql"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"sunwellmem/internal/logging"
)

func init() {
	vec.Auto()
}

// sqliteVecBackend accelerates Search via a vec0 virtual table. It is
// additive: Save/Load never depend on it, so an index persisted by a
// cgo-enabled process reloads fine in a pure-Go one.
type sqliteVecBackend struct {
	db         *sql.DB
	dimensions int
}

// newSQLiteVecBackend opens (or creates) a vec0 virtual table at path sized
// for dimensions float32 columns.
func newSQLiteVecBackend(path string, dimensions int) (*sqliteVecBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("embedindex: open vec db: %w", err)
	}
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, dimensions)
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("embedindex: create vec0 table: %w", err)
	}
	logging.Embedding("sqlite-vec backend opened at %s, dims=%d", path, dimensions)
	return &sqliteVecBackend{db: db, dimensions: dimensions}, nil
}

func (b *sqliteVecBackend) add(id string, vector []float32) error {
	blob, err := vec.SerializeFloat32(vector)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(`INSERT OR REPLACE INTO vec_items(id, embedding) VALUES (?, ?)`, id, blob)
	return err
}

func (b *sqliteVecBackend) delete(id string) error {
	_, err := b.db.Exec(`DELETE FROM vec_items WHERE id = ?`, id)
	return err
}

func (b *sqliteVecBackend) search(query []float32, topK int) ([]Result, error) {
	blob, err := vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	rows, err := b.db.Query(`
		SELECT id, distance FROM vec_items
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, blob, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		// vec0 reports L2 distance on normalized vectors; convert to a
		// cosine-like similarity so scores stay comparable to the brute
		// force backend's output.
		results = append(results, Result{ID: id, Score: 1.0 - distance*distance/2.0})
	}
	return results, rows.Err()
}

func (b *sqliteVecBackend) close() error {
	return b.db.Close()
}

// EnableANN attaches a sqlite-vec backed accelerator to idx, persisting
// vectors into path in addition to idx's own in-memory brute-force form.
// Only available when built with -tags sqlite_vec (and cgo enabled).
func (idx *Index) EnableANN(path string) error {
	backend, err := newSQLiteVecBackend(path, idx.dimensions)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.backend = backend
	for _, id := range idx.order {
		if err := backend.add(id, idx.entries[id].vector); err != nil {
			return fmt.Errorf("embedindex: seed vec0 table: %w", err)
		}
	}
	return nil
}
