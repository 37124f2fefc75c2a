package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/prompt"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
	"github.com/54b3r/civic-go/internal/store"
)

// scriptedModel streams a fixed reply and records every input it receives.
type scriptedModel struct {
	mu     sync.Mutex
	chunks []string
	inputs [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(in)
	return schema.AssistantMessage(strings.Join(m.chunks, ""), nil), nil
}

func (m *scriptedModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(in)
	msgs := make([]*schema.Message, len(m.chunks))
	for i, c := range m.chunks {
		msgs[i] = schema.AssistantMessage(c, nil)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) record(in []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
}

func (m *scriptedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[len(m.inputs)-1]
}

type stubRetriever struct {
	res *retrieval.Result
	err error
}

func (s stubRetriever) Retrieve(context.Context, string, int, rag.Domain) (*retrieval.Result, error) {
	return s.res, s.err
}

func newAssistant(t *testing.T, cfg *Config) *Assistant {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return a
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(context.Background(), &Config{})
	require.Error(t, err)
	_, err = New(context.Background(), nil)
	require.Error(t, err)
}

func TestQueryStreamsReply(t *testing.T) {
	m := &scriptedModel{chunks: []string{"Your balance ", "is $150.00."}}
	a := newAssistant(t, &Config{ChatModel: m})

	var out strings.Builder
	require.NoError(t, a.Query(context.Background(), "s1", "How much do I owe?", &out))
	assert.Equal(t, "Your balance is $150.00.", out.String())

	in := m.lastInput()
	require.Len(t, in, 2)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Equal(t, prompt.Instructions, in[0].Content)
	assert.Equal(t, schema.User, in[1].Role)
	assert.Equal(t, "How much do I owe?", in[1].Content)
}

func TestQueryRejectsBlankMessage(t *testing.T) {
	a := newAssistant(t, &Config{ChatModel: &scriptedModel{chunks: []string{"x"}}})
	err := a.Query(context.Background(), "", "   ", &strings.Builder{})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestQueryInjectsRetrievedContext(t *testing.T) {
	m := &scriptedModel{chunks: []string{"Apply at Civic Centre."}}
	r := stubRetriever{res: &retrieval.Result{
		Domain: rag.DomainLicensing,
		Chunks: []rag.SearchResult{{
			Content:  "Shop licences are issued at the Civic Centre.",
			Metadata: rag.Metadata{Title: "licensing", Domain: rag.DomainLicensing},
		}},
	}}
	a := newAssistant(t, &Config{ChatModel: m, Retriever: r})

	_, err := a.Ask(context.Background(), "", "Where do I apply for a shop licence?")
	require.NoError(t, err)

	in := m.lastInput()
	require.Len(t, in, 3)
	assert.Equal(t, schema.System, in[1].Role)
	assert.Contains(t, in[1].Content, "Context:\n[licensing | licensing]")
}

func TestQueryContinuesWhenRetrievalFails(t *testing.T) {
	m := &scriptedModel{chunks: []string{"ok"}}
	a := newAssistant(t, &Config{ChatModel: m, Retriever: stubRetriever{err: errors.New("index offline")}})

	got, err := a.Ask(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, m.lastInput(), 2)
}

func TestHistoryPersistedAndReplayed(t *testing.T) {
	hist, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	m := &scriptedModel{chunks: []string{"Reference INC1."}}
	a := newAssistant(t, &Config{ChatModel: m, History: hist})
	ctx := context.Background()

	_, err = a.Ask(ctx, "resident-1", "Report a burst pipe in Mucheke")
	require.NoError(t, err)
	_, err = a.Ask(ctx, "resident-1", "What was my reference?")
	require.NoError(t, err)

	in := m.lastInput()
	require.Len(t, in, 4)
	assert.Equal(t, "Report a burst pipe in Mucheke", in[1].Content)
	assert.Equal(t, schema.Assistant, in[2].Role)
	assert.Equal(t, "Reference INC1.", in[2].Content)
	assert.Equal(t, "What was my reference?", in[3].Content)

	// Other sessions see nothing.
	_, err = a.Ask(ctx, "resident-2", "hi")
	require.NoError(t, err)
	assert.Len(t, m.lastInput(), 2)

	require.NoError(t, a.Reset(ctx, "resident-1"))
	msgs, err := hist.Recent(ctx, "resident-1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistoryTrimmedToBudget(t *testing.T) {
	hist, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	ctx := context.Background()
	long := strings.Repeat("water ", 400)
	for range 3 {
		require.NoError(t, hist.Append(ctx, "s", store.RoleUser, long))
		require.NoError(t, hist.Append(ctx, "s", store.RoleAssistant, long))
	}

	m := &scriptedModel{chunks: []string{"ok"}}
	a := newAssistant(t, &Config{ChatModel: m, History: hist, MaxContextTokens: 1000})

	_, err = a.Ask(ctx, "s", "short question")
	require.NoError(t, err)

	in := m.lastInput()
	total := prompt.EstimateMessages(in)
	assert.LessOrEqual(t, total, 1000)
	// Each replayed turn costs about 1200 tokens, so none fit.
	assert.Len(t, in, 2)
}
