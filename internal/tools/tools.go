// Package tools defines the council tools the assistant can call during a
// conversation. Each tool satisfies Eino's tool.InvokableTool so it can be
// registered directly with a ReAct agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
	"github.com/54b3r/civic-go/internal/structured"
)

// CivicTool is the accessor set shared by every tool in this package.
type CivicTool interface {
	tool.InvokableTool
	// Name returns the unique tool name registered with the agent.
	Name() string
	// Description is the LLM-facing summary sent with the tool schema.
	Description() string
}

// Retriever is the slice of the retrieval service the search tool needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, domain rag.Domain) (*retrieval.Result, error)
}

// RecordSearcher is the slice of the structured merger the lookup tool needs.
type RecordSearcher interface {
	Search(query string, domain rag.Domain) []structured.Match
}

// Set returns the tools that can be built from the given collaborators. A nil
// collaborator leaves its tool out; the fee calculator is always present.
func Set(r Retriever, records RecordSearcher) []tool.BaseTool {
	var out []tool.BaseTool
	if r != nil {
		out = append(out, NewSearchTool(r))
	}
	if records != nil {
		out = append(out, NewLookupTool(records))
	}
	return append(out, NewFeeTool())
}

// decode unmarshals the model-supplied arguments into v.
func decode(name, args string, v any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("%s: invalid input: %w", name, err)
	}
	return nil
}

// domainArg parses an optional domain argument. Empty means "let the
// classifier decide".
func domainArg(name, s string) (rag.Domain, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", nil
	}
	d, err := rag.ParseDomain(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// domainEnum lists the domains for the JSON schema.
func domainEnum() []string {
	ds := rag.Domains()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
