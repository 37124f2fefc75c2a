// Package assistant wires an Eino ReAct agent to the council tools, the
// retrieval service and the chat history store. It answers free-form
// questions that fall outside the fixed handler routes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/civic-go/internal/logging"
	"github.com/54b3r/civic-go/internal/prompt"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
	"github.com/54b3r/civic-go/internal/store"
)

const (
	defaultTopK         = 5
	defaultHistoryDepth = 10
	defaultMaxStep      = 12

	// DefaultSession is used when a caller does not name a session.
	DefaultSession = "default"
)

// ErrEmptyMessage is returned when the question is blank.
var ErrEmptyMessage = errors.New("assistant: message must not be empty")

// Retriever gathers context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, domain rag.Domain) (*retrieval.Result, error)
}

// Config holds the dependencies of an Assistant.
type Config struct {
	// ChatModel is the LLM backend built by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools are registered with the ReAct loop.
	Tools []tool.BaseTool

	// Retriever supplies context injected ahead of the question. Optional.
	Retriever Retriever

	// TopK is the number of chunks retrieved per question (5 if zero).
	TopK int

	// History persists turns per session. Optional; nil means stateless.
	History store.ConversationStore

	// HistoryDepth is the number of prior turns replayed (10 if zero).
	HistoryDepth int

	// MaxContextTokens bounds the estimated prompt size. History is trimmed
	// oldest-first to fit (prompt.DefaultMaxTokens if zero).
	MaxContextTokens int

	// MaxStep caps ReAct iterations (12 if zero).
	MaxStep int
}

// Assistant answers questions with a tool-calling ReAct loop.
type Assistant struct {
	agent        *react.Agent
	retriever    Retriever
	topK         int
	history      store.ConversationStore
	historyDepth int
	maxTokens    int
}

// New constructs an Assistant.
func New(ctx context.Context, cfg *Config) (*Assistant, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("assistant: ChatModel must not be nil")
	}

	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = defaultMaxStep
	}
	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: cfg.Tools},
		MaxStep:          maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create ReAct agent: %w", err)
	}

	a := &Assistant{
		agent:        agent,
		retriever:    cfg.Retriever,
		topK:         cfg.TopK,
		history:      cfg.History,
		historyDepth: cfg.HistoryDepth,
		maxTokens:    cfg.MaxContextTokens,
	}
	if a.topK <= 0 {
		a.topK = defaultTopK
	}
	if a.historyDepth <= 0 {
		a.historyDepth = defaultHistoryDepth
	}
	if a.maxTokens <= 0 {
		a.maxTokens = prompt.DefaultMaxTokens
	}
	return a, nil
}

// Query answers message within session, writing content to w as the model
// streams it. The completed turn is persisted when a history store is set.
func (a *Assistant) Query(ctx context.Context, session, message string, w io.Writer) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if session == "" {
		session = DefaultSession
	}

	messages := a.buildMessages(ctx, session, message)

	sr, err := a.agent.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("assistant: stream failed: %w", err)
	}
	defer sr.Close()

	var reply strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("assistant: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		reply.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return fmt.Errorf("assistant: write error: %w", err)
		}
	}

	a.remember(ctx, session, message, reply.String())
	return nil
}

// Ask is Query collected into a string.
func (a *Assistant) Ask(ctx context.Context, session, message string) (string, error) {
	var sb strings.Builder
	if err := a.Query(ctx, session, message, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Reset clears the stored history of session.
func (a *Assistant) Reset(ctx context.Context, session string) error {
	if a.history == nil {
		return nil
	}
	if session == "" {
		session = DefaultSession
	}
	return a.history.Clear(ctx, session)
}

// remember persists the turn. Failures are logged, never returned.
func (a *Assistant) remember(ctx context.Context, session, question, answer string) {
	if a.history == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := a.history.Append(ctx, session, store.RoleUser, question); err != nil {
		log.Warn("history: failed to persist user message", slog.Any("error", err))
		return
	}
	if err := a.history.Append(ctx, session, store.RoleAssistant, answer); err != nil {
		log.Warn("history: failed to persist assistant message", slog.Any("error", err))
	}
}

// buildMessages assembles instructions, trimmed history, retrieved context
// and the question. History and retrieval failures degrade to an answer
// without them.
func (a *Assistant) buildMessages(ctx context.Context, session, message string) []*schema.Message {
	log := logging.FromContext(ctx)
	in := prompt.Input{Question: message}

	if a.history != nil {
		prior, err := a.history.Recent(ctx, session, a.historyDepth*2)
		if err != nil {
			log.Warn("history: failed to load prior messages", slog.Any("error", err))
		} else {
			in.History = store.Turns(prior)
		}
	}

	if a.retriever != nil {
		res, err := a.retriever.Retrieve(ctx, message, a.topK, "")
		switch {
		case err != nil:
			log.Warn("retrieval failed, continuing without context", slog.Any("error", err))
		case !res.Empty():
			in.Context = res.Context()
			if res.FilterBypassed {
				log.Debug("retrieval: domain filter bypassed", slog.String("domain", string(res.Domain)))
			}
		}
	}

	msgs, dropped := prompt.Messages(in, a.maxTokens)
	if dropped > 0 {
		log.Warn("prompt: dropped history turns to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(in.History)-dropped),
			slog.Int("max_tokens", a.maxTokens),
		)
	}
	return msgs
}
