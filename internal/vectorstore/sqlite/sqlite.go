// Package sqlite is a rag.VectorStore persisted in a local SQLite file.
// Embeddings are stored as little-endian float32 blobs and searched by
// brute-force cosine similarity, which is adequate for a council-sized
// corpus of a few thousand chunks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/vectorstore"
)

// Store is a rag.VectorStore backed by SQLite.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.civic/index.db, creating the directory if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("sqlite index: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".civic")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("sqlite index: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// Open opens (or creates) the index at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite index: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT    NOT NULL UNIQUE,
    content    TEXT    NOT NULL,
    metadata   TEXT    NOT NULL,  -- JSON-encoded rag.Metadata
    dims       INTEGER NOT NULL,
    embedding  BLOB    NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite index: migrate: %w", err)
	}
	return nil
}

// Upsert implements rag.VectorStore. Replacing an existing id keeps its
// original position for tie-breaking.
func (s *Store) Upsert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, embeddings, 0); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite index: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT INTO chunks (id, content, metadata, dims, embedding) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    content = excluded.content,
    metadata = excluded.metadata,
    dims = excluded.dims,
    embedding = excluded.embedding`
	for i, ch := range chunks {
		md, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite index: encode metadata for %q: %w", ch.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, ch.ID, ch.Content, string(md), len(embeddings[i]), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("sqlite index: upsert %q: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite index: commit: %w", err)
	}
	return nil
}

// Search implements rag.VectorStore.
func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]rag.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM chunks WHERE dims = ? ORDER BY seq`, len(query))
	if err != nil {
		return nil, fmt.Errorf("sqlite index: search: %w", err)
	}
	defer rows.Close()

	var candidates []vectorstore.Candidate
	for rows.Next() {
		var (
			c    vectorstore.Candidate
			md   string
			blob []byte
		)
		if err := rows.Scan(&c.Chunk.ID, &c.Chunk.Content, &md, &blob); err != nil {
			return nil, fmt.Errorf("sqlite index: search scan: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &c.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite index: decode metadata for %q: %w", c.Chunk.ID, err)
		}
		c.Vector = decodeVector(blob)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite index: search rows: %w", err)
	}
	return vectorstore.Rank(query, candidates, topK), nil
}

// Count implements rag.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite index: count: %w", err)
	}
	return n, nil
}

// Delete implements rag.VectorStore in one transaction.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite index: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite index: delete %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite index: commit: %w", err)
	}
	return nil
}

// IDsByTitle implements rag.VectorStore.
func (s *Store) IDsByTitle(ctx context.Context, title string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE json_extract(metadata, '$.title') = ? ORDER BY seq`, title)
	if err != nil {
		return nil, fmt.Errorf("sqlite index: ids for %q: %w", title, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite index: ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ping checks the database connection. It satisfies the server's readiness
// Pinger interface.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements rag.VectorStore.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite index: close: %w", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
