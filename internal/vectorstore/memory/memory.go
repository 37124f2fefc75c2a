// Package memory is an in-process rag.VectorStore using brute-force cosine
// similarity. It is the default for tests and single-process use.
package memory

import (
	"context"
	"sync"

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/vectorstore"
)

// Store keeps chunks in insertion order; an upsert of an existing id
// replaces it in place.
type Store struct {
	mu    sync.RWMutex
	dims  int
	ids   []string
	items map[string]vectorstore.Candidate
}

// New returns an empty store. dims of 0 adopts the length of the first
// embedding written.
func New(dims int) *Store {
	return &Store{dims: dims, items: make(map[string]vectorstore.Candidate)}
}

// Upsert implements rag.VectorStore.
func (s *Store) Upsert(_ context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	if dims == 0 && len(embeddings) > 0 {
		dims = len(embeddings[0])
	}
	if err := vectorstore.CheckBatch(chunks, embeddings, dims); err != nil {
		return err
	}
	s.dims = dims

	for i, ch := range chunks {
		if _, ok := s.items[ch.ID]; !ok {
			s.ids = append(s.ids, ch.ID)
		}
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		s.items[ch.ID] = vectorstore.Candidate{Chunk: ch, Vector: vec}
	}
	return nil
}

// Search implements rag.VectorStore.
func (s *Store) Search(_ context.Context, query []float32, topK int) ([]rag.SearchResult, error) {
	s.mu.RLock()
	candidates := make([]vectorstore.Candidate, 0, len(s.ids))
	for _, id := range s.ids {
		candidates = append(candidates, s.items[id])
	}
	s.mu.RUnlock()

	return vectorstore.Rank(query, candidates, topK), nil
}

// Count implements rag.VectorStore.
func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids), nil
}

// Delete implements rag.VectorStore.
func (s *Store) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			drop[id] = true
			delete(s.items, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := s.ids[:0]
	for _, id := range s.ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.ids = kept
	return nil
}

// IDsByTitle implements rag.VectorStore.
func (s *Store) IDsByTitle(_ context.Context, title string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.ids {
		if s.items[id].Chunk.Metadata.Title == title {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close implements rag.VectorStore.
func (s *Store) Close() error { return nil }
