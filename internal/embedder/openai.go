// Package embedder provides implementations of the rag.Embedder interface.
// OpenAI, Azure OpenAI and Ollama are reached over their REST APIs, Gemini
// through the genai SDK, and Hashing runs fully offline.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/54b3r/civic-go/internal/rag"
)

// defaultOpenAIBatch stays well under the API's 2048-input limit so a
// single request never exceeds the token cap on long council documents.
const defaultOpenAIBatch = 256

// OpenAIEmbedder calls the OpenAI or Azure OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	url        string
	header     http.Header
	model      string
	dimensions int
	azure      bool
	batch      int
	client     *http.Client
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is https://api.openai.com/v1 for OpenAI, or
	// https://<resource>.openai.azure.com/openai for Azure.
	BaseURL string
	APIKey  string
	// Model is the model name, or the deployment name on Azure.
	Model string
	// Dimensions requests a shortened vector (0 keeps the model default).
	Dimensions int
	// Azure switches to api-key auth and deployment URLs.
	Azure bool
	// APIVersion is the Azure api-version query parameter.
	APIVersion string
	// BatchSize caps texts per request (256 if zero).
	BatchSize int
}

// NewOpenAIEmbedder returns an embedder for cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	e := &OpenAIEmbedder{
		url:        base + "/embeddings",
		header:     http.Header{},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		batch:      cfg.BatchSize,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	if e.batch <= 0 {
		e.batch = defaultOpenAIBatch
	}
	if cfg.Azure {
		e.url = base + "/deployments/" + url.PathEscape(cfg.Model) + "/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
		e.header.Set("api-key", cfg.APIKey)
	} else {
		e.header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return e
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed implements rag.Embedder. Failures are *rag.EmbeddingError.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := inBatches(ctx, texts, e.batch, e.embed)
	if err != nil {
		return nil, rag.NewEmbeddingError(e.provider(), len(texts), fmt.Errorf("%s embedder: %w", e.provider(), err))
	}
	return out, nil
}

func (e *OpenAIEmbedder) provider() string {
	if e.azure {
		return "azure"
	}
	return "openai"
}

// embed sends one batch. The API may return data out of order, so rows are
// placed by their index field.
func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openaiEmbedResponse
	req := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}
	if err := postJSON(ctx, e.client, e.url, e.header, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("invalid embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
