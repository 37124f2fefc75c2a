package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/civic-go/internal/handlers"
)

// FeeTool exposes the council fee arithmetic to the model so it never has to
// do penalty or balance maths itself.
type FeeTool struct{}

type feeInput struct {
	Operation   string    `json:"operation"`
	BaseFee     float64   `json:"base_fee"`
	PenaltyRate *float64  `json:"penalty_rate,omitempty"`
	DaysOverdue int       `json:"days_overdue"`
	Previous    float64   `json:"previous_balance"`
	Payments    []float64 `json:"payments"`
	Charges     []float64 `json:"charges"`
	Value       float64   `json:"value"`
	Percent     float64   `json:"percent"`
}

// NewFeeTool constructs a FeeTool.
func NewFeeTool() *FeeTool { return &FeeTool{} }

// Name returns the tool name registered with the agent.
func (t *FeeTool) Name() string { return "fee_calculator" }

// Description returns the LLM-facing description of this tool.
func (t *FeeTool) Description() string {
	return "Calculates council fees. operation=fee applies the overdue penalty per whole 30 days, " +
		"operation=balance totals a bill from payments and charges, operation=percentage takes a percentage of a value."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *FeeTool) Info(context.Context) (*schema.ToolInfo, error) {
	number := &schema.ParameterInfo{Type: schema.Number}
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"operation": {
				Type:     schema.String,
				Desc:     "One of fee, balance or percentage.",
				Enum:     []string{"fee", "balance", "percentage"},
				Required: true,
			},
			"base_fee":         {Type: schema.Number, Desc: "fee: the base amount."},
			"penalty_rate":     {Type: schema.Number, Desc: "fee: penalty per overdue month as a fraction (default 0.1)."},
			"days_overdue":     {Type: schema.Integer, Desc: "fee: days past the due date."},
			"previous_balance": {Type: schema.Number, Desc: "balance: balance brought forward."},
			"payments":         {Type: schema.Array, Desc: "balance: payment amounts.", ElemInfo: number},
			"charges":          {Type: schema.Array, Desc: "balance: new charges.", ElemInfo: number},
			"value":            {Type: schema.Number, Desc: "percentage: the amount."},
			"percent":          {Type: schema.Number, Desc: "percentage: the percentage to take."},
		}),
	}, nil
}

// InvokableRun performs the requested calculation and returns JSON.
func (t *FeeTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in feeInput
	if err := decode(t.Name(), argumentsInJSON, &in); err != nil {
		return "", err
	}

	var out any
	switch in.Operation {
	case "fee":
		rate := handlers.DefaultPenaltyRate
		if in.PenaltyRate != nil {
			rate = *in.PenaltyRate
		}
		out = handlers.CalculateFee(in.BaseFee, rate, in.DaysOverdue)
	case "balance":
		out = handlers.Balance(in.Previous, in.Payments, in.Charges)
	case "percentage":
		out = map[string]float64{
			"value":   in.Value,
			"percent": in.Percent,
			"result":  handlers.Percentage(in.Value, in.Percent),
		}
	default:
		return "", fmt.Errorf("fee_calculator: unknown operation %q", in.Operation)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("fee_calculator: encode result: %w", err)
	}
	return string(data), nil
}
