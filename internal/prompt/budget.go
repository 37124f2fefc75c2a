package prompt

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken approximates tokenizer output across backends.
	charsPerToken = 4

	// messageOverhead is the per-message framing cost in tokens.
	messageOverhead = 4

	// DefaultMaxTokens is the input budget used when none is configured.
	DefaultMaxTokens = 6000
)

// EstimateTokens approximates the token count of s. Any non-empty string
// costs at least one token.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return max(1, len(s)/charsPerToken)
}

// EstimateMessages sums the estimated cost of msgs including framing.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead + EstimateTokens(string(m.Role)) + EstimateTokens(m.Content)
	}
	return total
}

// FitHistory drops whole turns, oldest first, until fixed plus the
// remaining turns fit maxTokens. Fixed messages are never dropped, so the
// result may be empty while fixed alone is still over budget.
func FitHistory(fixed []*schema.Message, turns []Turn, maxTokens int) []Turn {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	budget := maxTokens - EstimateMessages(fixed)
	for len(turns) > 0 && EstimateMessages(TurnMessages(turns)) > budget {
		turns = turns[1:]
	}
	return turns
}
