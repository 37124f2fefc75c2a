// Package rag defines the core types shared by the retrieval pipeline:
// documents, chunks, metadata, search results, and the interfaces for
// embedding and vector storage. Concrete implementations (memory, SQLite,
// Qdrant, pgvector, Ollama, OpenAI, ...) satisfy these interfaces so the
// index, classifier, and orchestrator never depend on a specific backend.
package rag

import (
	"context"
)

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice. Failures are
	// reported as *EmbeddingError and are never retried by callers.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or replaces a batch of chunks keyed by Chunk.ID.
	// The embeddings slice must be parallel to chunks.
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns up to topK chunks ordered by ascending cosine distance
	// to the query embedding. An empty store yields an empty slice.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Delete removes chunks by their IDs. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// IDsByTitle returns the ids of stored chunks whose metadata title is
	// title, in no particular order.
	IDsByTitle(ctx context.Context, title string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
