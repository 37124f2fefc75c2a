// Package prompt builds the language-model input for civic questions: the
// assistant instructions, prior conversation turns, retrieved context and
// the question itself.
package prompt

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Instructions is the system prompt of the civic assistant.
const Instructions = `You are the Masvingo City Council civic assistant. You help residents with
water billing, incident reports, business licensing, council by-laws, public
notices, contacts, departments and online services.

Rules:
- Answer only from the provided context and tool results. If the answer is not
  there, say the information is not currently available and suggest contacting
  the council directly.
- Be concise and practical. Use short lists for steps, fees and contact details.
- Quote amounts, dates and reference numbers exactly as they appear in the context.
- Never invent account balances, incident numbers or licence decisions.
- For urgent incidents (burst pipes, sewer overflows) always give the emergency
  contact: +263-39-123-456.`

// Turn is one exchange in a conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Input is everything a prompt is built from.
type Input struct {
	// Instructions defaults to the package Instructions when empty.
	Instructions string

	// History holds prior turns, oldest first.
	History []Turn

	// Context is the rendered retrieval evidence.
	Context string

	// Question is the current user message.
	Question string
}

func (in Input) instructions() string {
	if in.Instructions == "" {
		return Instructions
	}
	return in.Instructions
}

// FormatHistory renders turns as alternating "User:" and "Assistant:" lines.
func FormatHistory(turns []Turn) string {
	lines := make([]string, 0, 2*len(turns))
	for _, t := range turns {
		lines = append(lines, "User: "+t.User, "Assistant: "+t.Assistant)
	}
	return strings.Join(lines, "\n")
}

// Render returns the single-string prompt used by completion-style models.
func Render(in Input) string {
	var sb strings.Builder
	sb.WriteString(in.instructions())
	sb.WriteString("\n\nConversation history:\n")
	sb.WriteString(FormatHistory(in.History))
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(in.Context)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(in.Question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// Messages returns the chat form of in: instructions, history turns,
// context as a second system message, then the question. History is
// trimmed oldest-first to fit maxTokens; the number of dropped turns is
// returned alongside.
func Messages(in Input, maxTokens int) ([]*schema.Message, int) {
	fixed := []*schema.Message{schema.SystemMessage(in.instructions())}
	if strings.TrimSpace(in.Context) != "" {
		fixed = append(fixed, schema.SystemMessage("Context:\n"+in.Context))
	}
	fixed = append(fixed, schema.UserMessage(in.Question))

	kept := FitHistory(fixed, in.History, maxTokens)
	dropped := len(in.History) - len(kept)

	out := make([]*schema.Message, 0, len(fixed)+2*len(kept))
	out = append(out, fixed[0])
	out = append(out, TurnMessages(kept)...)
	out = append(out, fixed[1:]...)
	return out, dropped
}

// TurnMessages converts turns to user and assistant messages. A turn with
// an empty assistant reply contributes only the user message.
func TurnMessages(turns []Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs, schema.UserMessage(t.User))
		if t.Assistant != "" {
			msgs = append(msgs, schema.AssistantMessage(t.Assistant, nil))
		}
	}
	return msgs
}
