// Package vectorstore holds the helpers shared by the brute-force
// rag.VectorStore implementations. Each backend lives in a subpackage:
// memory, sqlite, qdrant, and pgvector.
package vectorstore

import (
	"fmt"
	"sort"

	"github.com/54b3r/civic-go/internal/rag"
)

// Candidate is a stored chunk with its embedding.
type Candidate struct {
	Chunk  rag.Chunk
	Vector []float32
}

// Rank scores candidates against query by cosine distance and returns the
// topK closest in ascending distance. Equal distances keep input order.
func Rank(query []float32, candidates []Candidate, topK int) []rag.SearchResult {
	if topK <= 0 || len(candidates) == 0 {
		return []rag.SearchResult{}
	}
	results := make([]rag.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = rag.SearchResult{
			ID:       c.Chunk.ID,
			Content:  c.Chunk.Content,
			Metadata: c.Chunk.Metadata,
			Distance: rag.Distance(rag.Cosine(query, c.Vector)),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// CheckBatch validates an upsert batch: chunks and embeddings must be
// parallel and every embedding must have dims entries (dims 0 skips that
// check).
func CheckBatch(chunks []rag.Chunk, embeddings [][]float32, dims int) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("vectorstore: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if dims == 0 {
		return nil
	}
	for i, e := range embeddings {
		if len(e) != dims {
			return fmt.Errorf("vectorstore: chunk %q has %d dimensions, want %d: %w",
				chunks[i].ID, len(e), dims, rag.ErrDimensionMismatch)
		}
	}
	return nil
}
