package evaluation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/rag"
)

type fakeSearcher struct {
	byQuery map[string][]rag.SearchResult
	err     error
	domains []rag.Domain
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK int, domain rag.Domain) (*index.Results, error) {
	f.domains = append(f.domains, domain)
	if f.err != nil {
		return nil, f.err
	}
	items := f.byQuery[query]
	if len(items) > topK {
		items = items[:topK]
	}
	return &index.Results{Items: items}, nil
}

type fixedClassifier map[string]rag.Domain

func (c fixedClassifier) ClassifyQuery(_ context.Context, q string) rag.Domain {
	if d, ok := c[q]; ok {
		return d
	}
	return rag.DomainGeneral
}

func hit(domain rag.Domain, title string) rag.SearchResult {
	return rag.SearchResult{
		ID:       title + "_0",
		Content:  "content of " + title,
		Metadata: rag.Metadata{Title: title, Domain: domain},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScore_Mixed(t *testing.T) {
	q := TestQuery{
		ExpectedDomains:    []string{"billing"},
		ExpectedChunks:     []string{"bill_payments.txt"},
		RelevanceThreshold: 0.7,
	}
	items := []rag.SearchResult{
		hit(rag.DomainBilling, "bill_payments.txt"),
		hit(rag.DomainBilling, "rates.txt"),
		hit(rag.DomainLicensing, "bill_payments.txt"),
		hit(rag.DomainNotices, "public_notices.txt"),
	}

	p, r, f1, avg := Score(items, q)
	assert.InDelta(t, 0.25, p, 1e-9)
	assert.InDelta(t, 0.5, r, 1e-9)
	assert.InDelta(t, 1.0/3.0, f1, 1e-9)
	assert.InDelta(t, 0.25, avg, 1e-9)
}

func TestScore_RecallClamped(t *testing.T) {
	q := TestQuery{ExpectedDomains: []string{"by-laws"}}
	items := []rag.SearchResult{
		hit(rag.DomainByLaws, "bylaws.txt"),
		hit(rag.DomainByLaws, "bylaws.txt"),
		hit(rag.DomainByLaws, "building_bylaws.txt"),
	}

	p, r, f1, _ := Score(items, q)
	assert.Equal(t, 1.0, p)
	assert.Equal(t, 1.0, r)
	assert.Equal(t, 1.0, f1)
}

func TestScore_NoResults(t *testing.T) {
	p, r, f1, avg := Score(nil, TestQuery{ExpectedDomains: []string{"billing"}})
	assert.Zero(t, p)
	assert.Zero(t, r)
	assert.Zero(t, f1)
	assert.Zero(t, avg)
}

func TestScore_NoExpectations(t *testing.T) {
	p, r, f1, avg := Score([]rag.SearchResult{hit(rag.DomainFAQ, "faq.txt")}, TestQuery{})
	assert.Equal(t, 1.0, p)
	assert.Zero(t, r, "recall has no denominator without expectations")
	assert.Zero(t, f1, "F1 is zero when recall is zero")
	assert.Equal(t, 1.0, avg)
}

func TestScore_Bounded(t *testing.T) {
	domains := []rag.Domain{rag.DomainBilling, rag.DomainLicensing, rag.DomainGeneral}
	titles := []string{"bill_payments.txt", "operating_licenses.txt", "x"}
	for n := 1; n <= 6; n++ {
		var items []rag.SearchResult
		for i := range n {
			items = append(items, hit(domains[i%3], titles[(i+1)%3]))
		}
		p, r, f1, _ := Score(items, TestQuery{
			ExpectedDomains: []string{"billing", "licensing"},
			ExpectedChunks:  []string{"operating_licenses.txt"},
		})
		for _, v := range []float64{p, r, f1} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestEvaluate_Report(t *testing.T) {
	s := &fakeSearcher{byQuery: map[string][]rag.SearchResult{
		"How do I pay my bills?": {
			hit(rag.DomainBilling, "bill_payments.txt"),
		},
		"What are the council bylaws?": {
			hit(rag.DomainNotices, "public_notices.txt"),
		},
	}}
	cls := fixedClassifier{
		"How do I pay my bills?":       rag.DomainBilling,
		"What are the council bylaws?": rag.DomainGeneral,
	}
	ev, err := New(s, cls, quietLogger())
	require.NoError(t, err)
	ev.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	queries := SampleQueries()[:2]
	rep, err := ev.Evaluate(context.Background(), queries, 5)
	require.NoError(t, err)

	require.Len(t, rep.DetailedResults, 2)
	assert.Equal(t, 2, rep.Summary.TotalQueries)
	assert.True(t, rep.Summary.ClassifierUsed)
	assert.InDelta(t, 0.5, rep.Summary.DomainAccuracy, 1e-9)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rep.Timestamp)

	bylaws := rep.DetailedResults[0]
	assert.Zero(t, bylaws.F1)
	bills := rep.DetailedResults[1]
	assert.Equal(t, rag.DomainBilling, bills.PredictedDomain)
	assert.Equal(t, 1.0, bills.Precision)
	assert.InDelta(t, 0.5, bills.Recall, 1e-9)
	require.Len(t, bills.Details, 1)
	assert.Equal(t, "bill_payments.txt_0", bills.Details[0].ID)

	for _, d := range s.domains {
		assert.Empty(t, d, "evaluation searches are unfiltered")
	}
}

func TestEvaluate_NoClassifier(t *testing.T) {
	ev, err := New(&fakeSearcher{}, nil, quietLogger())
	require.NoError(t, err)

	rep, err := ev.Evaluate(context.Background(), SampleQueries(), 5)
	require.NoError(t, err)
	assert.False(t, rep.Summary.ClassifierUsed)
	assert.Zero(t, rep.Summary.DomainAccuracy)
	assert.Zero(t, rep.Summary.AverageF1)
}

func TestEvaluate_SearchError(t *testing.T) {
	boom := errors.New("embedding backend down")
	ev, err := New(&fakeSearcher{err: boom}, nil, quietLogger())
	require.NoError(t, err)

	_, err = ev.Evaluate(context.Background(), SampleQueries(), 5)
	require.ErrorIs(t, err, boom)
}

func TestNew_RequiresSearcher(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}

func TestPreview_Truncates(t *testing.T) {
	long := bytes.Repeat([]byte("a"), 250)
	got := preview(string(long))
	assert.Len(t, got, previewLen+3)
	assert.Equal(t, "short", preview("short"))
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"query": "Where is the water office?", "expected_domains": ["contacts"]},
		{"query": "Refuse days", "expected_chunks": ["services.txt"], "relevance_threshold": 0.9}
	]`), 0o644))

	qs, err := LoadQueries(path)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, []string{"contacts"}, qs[0].ExpectedDomains)
	assert.Equal(t, DefaultThreshold, qs[0].threshold())
	assert.Equal(t, 0.9, qs[1].threshold())
}

func TestLoadQueries_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadQueries(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"query": 1}`), 0o644))
	_, err = LoadQueries(bad)
	assert.Error(t, err)

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(`[{"query": "  "}]`), 0o644))
	_, err = LoadQueries(blank)
	assert.ErrorContains(t, err, "empty query")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	rep := &Report{
		Summary:         Summary{TotalQueries: 1, AverageF1: 0.5},
		Timestamp:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DetailedResults: []QueryResult{{Query: "q", F1: 0.5}},
	}
	require.NoError(t, WriteReport(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"summary"`)
	assert.Contains(t, string(data), `"timestamp": "2026-03-01T00:00:00Z"`)
	assert.Contains(t, string(data), `"detailed_results"`)
	assert.Contains(t, string(data), `"f1_score": 0.5`)
}

func TestExtremes(t *testing.T) {
	rs := []QueryResult{
		{Query: "a", F1: 0.2},
		{Query: "b", F1: 0.9},
		{Query: "c", F1: 0.5},
		{Query: "d", F1: 0.0},
	}
	best, worst := Extremes(rs, 3)
	assert.Equal(t, []string{"b", "c", "a"}, queriesOf(best))
	assert.Equal(t, []string{"d", "a", "c"}, queriesOf(worst))

	best, worst = Extremes(rs[:1], 3)
	assert.Len(t, best, 1)
	assert.Len(t, worst, 1)
}

func queriesOf(rs []QueryResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Query
	}
	return out
}

func TestRender(t *testing.T) {
	rep := &Report{
		Summary: Summary{TotalQueries: 2, AverageF1: 0.45, ClassifierUsed: true, DomainAccuracy: 1},
		DetailedResults: []QueryResult{
			{Query: "How do I pay my bills?", F1: 0.9},
			{Query: "What is the weather like in the city centre on public holidays today?", F1: 0},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep))

	out := buf.String()
	assert.Contains(t, out, "Retrieval evaluation summary")
	assert.Contains(t, out, "Domain classification accuracy")
	assert.Contains(t, out, "Top performing queries")
	assert.Contains(t, out, "1. F1: 0.900  How do I pay my bills?")
	assert.Contains(t, out, "Queries needing improvement")
	assert.Contains(t, out, "What is the weather like in the city centre on pub...")
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &Report{}))
	assert.Contains(t, buf.String(), "No evaluation results")
}
