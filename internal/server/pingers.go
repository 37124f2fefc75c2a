package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/civic-go/internal/provider"
)

// pingable is satisfied by the vector stores and the history store.
type pingable interface {
	Ping(ctx context.Context) error
}

// depPinger adapts a pingable dependency to the Pinger interface.
type depPinger struct {
	name string
	dep  pingable
}

// NewPinger wraps any dependency exposing Ping(ctx) as a named Pinger
// (e.g. the qdrant, pgvector or sqlite vector store, or the history store).
func NewPinger(name string, dep pingable) Pinger {
	return &depPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *depPinger) Name() string { return p.name }

// Ping delegates to the wrapped dependency.
func (p *depPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// LLMPinger probes the chat model backend. Ollama and OpenAI are probed with
// a zero-token HTTP request against their model listing endpoints; the other
// backends fall back to a single Generate call.
type LLMPinger struct {
	cfg    *provider.Config
	model  model.ToolCallingChatModel
	client *http.Client
}

// NewLLMPinger constructs an LLMPinger. client may be nil.
func NewLLMPinger(cfg *provider.Config, m model.ToolCallingChatModel, client *http.Client) *LLMPinger {
	if client == nil {
		client = http.DefaultClient
	}
	return &LLMPinger{cfg: cfg, model: m, client: client}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return "llm:" + string(p.cfg.Backend) }

// Ping probes the configured backend.
func (p *LLMPinger) Ping(ctx context.Context) error {
	switch p.cfg.Backend {
	case provider.BackendOllama:
		return p.get(ctx, strings.TrimRight(p.cfg.Ollama.Host, "/")+"/api/tags", "")
	case provider.BackendOpenAI:
		base := p.cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return p.get(ctx, strings.TrimRight(base, "/")+"/models", p.cfg.OpenAI.APIKey)
	}

	if p.model == nil {
		return fmt.Errorf("no chat model configured")
	}
	slog.Warn("pinger: using a Generate call as the health check, tokens will be consumed",
		slog.String("backend", string(p.cfg.Backend)),
	)
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// get issues a GET and treats any status below 400 as healthy.
func (p *LLMPinger) get(ctx context.Context, url, bearer string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.cfg.Backend, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s returned HTTP %d", p.cfg.Backend, resp.StatusCode)
	}
	return nil
}
