// Package pgvector is a rag.VectorStore backed by PostgreSQL with the
// pgvector extension, queried through a pgx connection pool.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/vectorstore"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "civic_chunks"

// Config holds connection settings.
type Config struct {
	// DSN is a libpq-style connection string or URL.
	DSN string
	// Table is the chunk table name.
	Table string
	// Dimensions fixes the vector column size.
	Dimensions int
}

// Store implements rag.VectorStore on pgvector.
type Store struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// New connects to Postgres and ensures the extension and table exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: dimensions must be positive, got %d", cfg.Dimensions)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	s := &Store{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		dims:  cfg.Dimensions,
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %s (
    seq        BIGSERIAL,
    id         TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    metadata   JSONB NOT NULL,
    embedding  vector(%d) NOT NULL
);`, s.table, s.dims)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector: migrate: %w", err)
	}
	return nil
}

// Upsert implements rag.VectorStore using a single pgx batch.
func (s *Store) Upsert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, embeddings, s.dims); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	q := fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (id) DO UPDATE SET
    content = EXCLUDED.content,
    metadata = EXCLUDED.metadata,
    embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for i, ch := range chunks {
		md, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: encode metadata for %q: %w", ch.ID, err)
		}
		batch.Queue(q, ch.ID, ch.Content, md, formatVector(embeddings[i]))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, ch := range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", ch.ID, err)
		}
	}
	return nil
}

// Search implements rag.VectorStore with the cosine distance operator.
func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	q := fmt.Sprintf(`
SELECT id, content, metadata, embedding <=> $1::vector AS distance
FROM %s
ORDER BY distance, seq
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, q, formatVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	results := []rag.SearchResult{}
	for rows.Next() {
		var (
			res      rag.SearchResult
			md       []byte
			distance float64
		)
		if err := rows.Scan(&res.ID, &res.Content, &md, &distance); err != nil {
			return nil, fmt.Errorf("pgvector: search scan: %w", err)
		}
		if err := json.Unmarshal(md, &res.Metadata); err != nil {
			return nil, fmt.Errorf("pgvector: decode metadata for %q: %w", res.ID, err)
		}
		res.Distance = float32(distance)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return results, nil
}

// Count implements rag.VectorStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return n, nil
}

// Delete implements rag.VectorStore.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table), ids); err != nil {
		return fmt.Errorf("pgvector: delete: %w", err)
	}
	return nil
}

// IDsByTitle implements rag.VectorStore.
func (s *Store) IDsByTitle(ctx context.Context, title string) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE metadata->>'title' = $1`, s.table), title)
	if err != nil {
		return nil, fmt.Errorf("pgvector: ids for %q: %w", title, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgvector: ids for %q: %w", title, err)
	}
	return ids, nil
}

// Ping checks the pool connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements rag.VectorStore.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// formatVector renders an embedding in pgvector's text input format.
func formatVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', 6, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
