package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCache persists page embeddings keyed by (model, content hash) so re-running
// ingestion over unchanged pages skips the model call.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens or creates the cache database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initCacheSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCache{db: db}, nil
}

func initCacheSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS page_embeddings (
		model TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (model, content_hash)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached embedding for (model, key) if present.
func (s *SQLiteCache) Get(ctx context.Context, model, key string) ([]float32, bool, error) {
	var dims int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, embedding FROM page_embeddings WHERE model = ? AND content_hash = ?`,
		model, key,
	).Scan(&dims, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(blob) != dims*4 {
		return nil, false, fmt.Errorf("cached embedding for %s has %d bytes, want %d", key, len(blob), dims*4)
	}
	return bytesToFloat32Slice(blob), true, nil
}

// Put stores the embedding for (model, key), replacing any previous value.
func (s *SQLiteCache) Put(ctx context.Context, model, key string, vec []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO page_embeddings (model, content_hash, dimensions, embedding)
		 VALUES (?, ?, ?, ?)`,
		model, key, len(vec), float32SliceToBytes(vec),
	)
	return err
}

// Count returns the number of cached embeddings.
func (s *SQLiteCache) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_embeddings`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
