package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/handlers"
	"github.com/54b3r/civic-go/internal/rag"
)

type fakeWeb struct {
	docs []rag.Document
	err  error
}

func (f fakeWeb) Fetch(context.Context, bool) ([]rag.Document, error) {
	return f.docs, f.err
}

func vocabulary(t *testing.T) *config.Vocabulary {
	t.Helper()
	v, err := config.DefaultVocabulary()
	require.NoError(t, err)
	return v
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = vocabulary(t)
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}
	o, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return o
}

func TestProcessScenarios(t *testing.T) {
	o := newOrchestrator(t, Config{})
	tests := []struct {
		query string
		want  Route
	}{
		{"How much do I owe for water?", RouteBilling},
		{"There's a pipe burst near Mucheke High", RouteIncident},
		{"I want to apply for a shop licence", RouteLicensing},
		{"What is the weather today?", RouteUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := o.Process(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.query, got.Query)
			assert.Equal(t, tt.want, got.Classification)
			assert.Equal(t, string(tt.want), got.AgentUsed)
			assert.NotEmpty(t, got.Response)
		})
	}
}

func TestUnknownWithoutWebListsServices(t *testing.T) {
	o := newOrchestrator(t, Config{})
	got, err := o.Process(context.Background(), "What is the weather today?")
	require.NoError(t, err)
	assert.Contains(t, got.Response, "Billing Services")
	assert.Contains(t, got.Response, "Incident Reporting")
	assert.Contains(t, got.Response, "Licensing Services")
}

func TestUnknownWebFailureFallsBackToHelp(t *testing.T) {
	o := newOrchestrator(t, Config{Web: fakeWeb{err: rag.ErrFetchFailed}})
	got, err := o.Process(context.Background(), "What is the weather today?")
	require.NoError(t, err)
	assert.Equal(t, staticHelp, got.Response)
}

func TestUnknownUsesWebContent(t *testing.T) {
	long := strings.Repeat("Refuse is collected weekly and water is treated daily. ", 30)
	web := fakeWeb{docs: []rag.Document{
		{Content: "too short", Metadata: rag.Metadata{Title: "Stub"}},
		{Content: long, Metadata: rag.Metadata{Title: "Homepage", Extra: map[string]string{"category": "homepage"}}},
		{Content: long, Metadata: rag.Metadata{Title: "Council Services", Extra: map[string]string{"category": "services"}}},
	}}
	o := newOrchestrator(t, Config{Web: web})

	got, err := o.Process(context.Background(), "What services do you offer?")
	require.NoError(t, err)
	assert.Equal(t, RouteUnknown, got.Classification)
	assert.True(t, strings.HasPrefix(got.Response, "Based on current information"))
	assert.Less(t, strings.Index(got.Response, "From Council Services:"), strings.Index(got.Response, "From Homepage:"))
	assert.NotContains(t, got.Response, "From Stub")

	got, err = o.Process(context.Background(), "What is the weather today?")
	require.NoError(t, err)
	assert.Contains(t, got.Response, "I've searched the Masvingo City Council website")
	assert.Contains(t, got.Response, "Billing Services")
}

func TestHandlerFailureBecomesApology(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := newOrchestrator(t, Config{
		Registerer: reg,
		Billing: handlers.HandlerFunc(func(context.Context, string) (string, error) {
			return "", errors.New("billing backend down")
		}),
		Incident: handlers.HandlerFunc(func(context.Context, string) (string, error) {
			panic("nil map")
		}),
	})

	got, err := o.Process(context.Background(), "what is my balance")
	require.NoError(t, err)
	assert.Equal(t, apology, got.Response)
	assert.Equal(t, "billing", got.AgentUsed)

	got, err = o.Process(context.Background(), "a leak on my street")
	require.NoError(t, err)
	assert.Equal(t, apology, got.Response)
	assert.Equal(t, RouteIncident, got.Classification)
}

func TestRouterPriority(t *testing.T) {
	r := NewRouter(vocabulary(t))
	assert.Equal(t, RouteBilling, r.Route("I want to report a bill error"))
	assert.Equal(t, RouteIncident, r.Route("REPORT a LEAK"))
	assert.Equal(t, RouteLicensing, r.Route("need more information"))
	assert.Equal(t, RouteUnknown, r.Route(""))
}

func TestStateIsCopied(t *testing.T) {
	s := NewState("q")
	routed := s.WithClassification(RouteBilling)
	answered := routed.WithResponse("billing", "ok")
	assert.Equal(t, RouteUnknown, s.Classification)
	assert.Empty(t, routed.Response)
	assert.Equal(t, "ok", answered.Response)
}

func TestConcurrentProcess(t *testing.T) {
	o := newOrchestrator(t, Config{})
	queries := map[string]Route{
		"How much do I owe for water?":       RouteBilling,
		"There's a pipe burst near the CBD":  RouteIncident,
		"I want to apply for a shop licence": RouteLicensing,
		"Where is the library?":              RouteUnknown,
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for q, want := range queries {
			wg.Add(1)
			go func(q string, want Route) {
				defer wg.Done()
				got, err := o.Process(context.Background(), q)
				assert.NoError(t, err)
				assert.Equal(t, want, got.Classification)
				assert.Equal(t, q, got.Query)
			}(q, want)
		}
	}
	wg.Wait()
}

func TestNewRequiresVocabulary(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
