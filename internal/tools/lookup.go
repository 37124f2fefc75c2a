package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// maxLookupRecords caps how many records one lookup returns to the model.
const maxLookupRecords = 10

// LookupTool searches the structured council records (bill tables, licence
// registers, contact lists) by substring.
type LookupTool struct {
	records RecordSearcher
}

type lookupInput struct {
	Query  string `json:"query"`
	Domain string `json:"domain,omitempty"`
}

// NewLookupTool constructs a LookupTool.
func NewLookupTool(records RecordSearcher) *LookupTool {
	return &LookupTool{records: records}
}

// Name returns the tool name registered with the agent.
func (t *LookupTool) Name() string { return "structured_lookup" }

// Description returns the LLM-facing description of this tool.
func (t *LookupTool) Description() string {
	return "Looks up exact values in council records such as account numbers, " +
		"licence numbers, office names or phone numbers."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *LookupTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Text that must appear in the record.",
				Required: true,
			},
			"domain": {
				Type: schema.String,
				Desc: "Optional domain to restrict the lookup.",
				Enum: domainEnum(),
			},
		}),
	}, nil
}

// InvokableRun returns matching records, one per line.
func (t *LookupTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in lookupInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}
	if in.Query == "" {
		return "", fmt.Errorf("structured_lookup: query is required")
	}
	domain, err := domainArg(t.Name(), in.Domain)
	if err != nil {
		return "", err
	}

	matches := t.records.Search(in.Query, domain)
	if len(matches) == 0 {
		return fmt.Sprintf("No records contain %q.", in.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d record(s) matched", len(matches))
	if len(matches) > maxLookupRecords {
		fmt.Fprintf(&b, ", showing the first %d", maxLookupRecords)
		matches = matches[:maxLookupRecords]
	}
	b.WriteString(":\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- (%s) %s\n", m.Source, strings.ReplaceAll(m.Record.Text(), "\n", "; "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
