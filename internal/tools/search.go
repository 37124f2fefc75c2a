package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// SearchTool runs combined retrieval over council documents, structured
// records and the cached website.
type SearchTool struct {
	retriever Retriever
}

type searchInput struct {
	Query  string `json:"query"`
	Domain string `json:"domain,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// NewSearchTool constructs a SearchTool.
func NewSearchTool(r Retriever) *SearchTool {
	return &SearchTool{retriever: r}
}

// Name returns the tool name registered with the agent.
func (t *SearchTool) Name() string { return "civic_search" }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Searches Masvingo City Council documents, records and website content. " +
		"Use this for by-laws, licences, bills, notices, contacts and services questions."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The resident's question or search terms.",
				Required: true,
			},
			"domain": {
				Type: schema.String,
				Desc: "Optional domain to restrict the search. Omit to classify the query automatically.",
				Enum: domainEnum(),
			},
			"top_k": {
				Type: schema.Integer,
				Desc: "Number of document chunks to return (default 5).",
			},
		}),
	}, nil
}

// InvokableRun retrieves evidence and returns it as a context block.
func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in searchInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	if in.Query == "" {
		return "", fmt.Errorf("civic_search: query is required")
	}
	domain, err := domainArg(t.Name(), in.Domain)
	if err != nil {
		return "", err
	}

	res, err := t.retriever.Retrieve(ctx, in.Query, in.TopK, domain)
	if err != nil {
		return "", fmt.Errorf("civic_search: %w", err)
	}
	if res.Empty() {
		return "No council information matched this query.", nil
	}
	return res.Context(), nil
}
