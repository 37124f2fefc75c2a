package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/civic-go/internal/rag"
)

// defaultOllamaBatch keeps each /api/embed call small enough for CPU-only
// hosts to answer within the client timeout.
const defaultOllamaBatch = 32

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	url    string
	model  string
	batch  int
	client *http.Client
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. http://localhost:11434.
	Host string
	// Model is the embedding model, e.g. nomic-embed-text.
	Model string
	// BatchSize caps texts per request (32 if zero).
	BatchSize int
}

// NewOllamaEmbedder returns an embedder for cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultOllamaBatch
	}
	return &OllamaEmbedder{
		url:    strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:  cfg.Model,
		batch:  batch,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements rag.Embedder. Failures are *rag.EmbeddingError.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := inBatches(ctx, texts, e.batch, e.embed)
	if err != nil {
		return nil, rag.NewEmbeddingError("ollama", len(texts), fmt.Errorf("ollama embedder: %w", err))
	}
	return out, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	if err := postJSON(ctx, e.client, e.url, nil, ollamaEmbedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
