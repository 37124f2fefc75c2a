// Package evaluation measures retrieval quality against labelled queries.
//
// A retrieved chunk is relevant when its domain is one of the expected
// domains and its title contains one of the expected chunk names; an empty
// expectation list matches anything. Precision divides relevant hits by the
// number retrieved and recall divides them by the number of expectations.
// Both are clamped to [0,1].
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/rag"
)

// DefaultThreshold applies when a query does not set relevance_threshold.
const DefaultThreshold = 0.5

// previewLen caps content previews in the detailed results.
const previewLen = 200

// TestQuery is one labelled query.
type TestQuery struct {
	Query              string   `json:"query"`
	ExpectedDomains    []string `json:"expected_domains"`
	ExpectedChunks     []string `json:"expected_chunks"`
	RelevanceThreshold float64  `json:"relevance_threshold,omitempty"`
}

func (q TestQuery) threshold() float64 {
	if q.RelevanceThreshold <= 0 {
		return DefaultThreshold
	}
	return q.RelevanceThreshold
}

// Retrieved describes one chunk returned for a query.
type Retrieved struct {
	ID             string     `json:"id"`
	Domain         rag.Domain `json:"domain"`
	Title          string     `json:"title"`
	Distance       float32    `json:"distance"`
	ContentPreview string     `json:"content_preview"`
}

// QueryResult holds the metrics for one query.
type QueryResult struct {
	Query           string      `json:"query"`
	PredictedDomain rag.Domain  `json:"predicted_domain,omitempty"`
	ExpectedDomains []string    `json:"expected_domains"`
	RetrievedChunks int         `json:"retrieved_chunks"`
	Precision       float64     `json:"precision"`
	Recall          float64     `json:"recall"`
	F1              float64     `json:"f1_score"`
	AvgRelevance    float64     `json:"avg_relevance"`
	Details         []Retrieved `json:"retrieved_details"`
}

// Summary aggregates a run. DomainAccuracy is only meaningful when a
// classifier was configured.
type Summary struct {
	TotalQueries     int     `json:"total_queries"`
	AveragePrecision float64 `json:"average_precision"`
	AverageRecall    float64 `json:"average_recall"`
	AverageF1        float64 `json:"average_f1_score"`
	AverageRelevance float64 `json:"average_relevance"`
	DomainAccuracy   float64 `json:"domain_classification_accuracy"`
	ClassifierUsed   bool    `json:"classifier_used"`
}

// Report is the persisted outcome of a run.
type Report struct {
	Summary         Summary       `json:"summary"`
	Timestamp       time.Time     `json:"timestamp"`
	DetailedResults []QueryResult `json:"detailed_results"`
}

// Searcher is the retrieval surface under test. *index.Index satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, domain rag.Domain) (*index.Results, error)
}

// QueryClassifier predicts a query's domain.
type QueryClassifier interface {
	ClassifyQuery(ctx context.Context, query string) rag.Domain
}

// Evaluator runs labelled queries against a Searcher.
type Evaluator struct {
	search     Searcher
	classifier QueryClassifier
	log        *slog.Logger
	now        func() time.Time
}

// New returns an Evaluator. classifier may be nil.
func New(search Searcher, classifier QueryClassifier, log *slog.Logger) (*Evaluator, error) {
	if search == nil {
		return nil, errors.New("evaluation: searcher must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{search: search, classifier: classifier, log: log, now: time.Now}, nil
}

// Evaluate runs every query with an unfiltered search of topK results.
// A search failure aborts the run.
func (e *Evaluator) Evaluate(ctx context.Context, queries []TestQuery, topK int) (*Report, error) {
	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		r, err := e.evaluateOne(ctx, q, topK)
		if err != nil {
			return nil, fmt.Errorf("evaluation: query %q: %w", q.Query, err)
		}
		e.log.Debug("evaluation: query scored",
			slog.String("query", q.Query),
			slog.Float64("f1", r.F1),
		)
		results = append(results, r)
	}
	return &Report{
		Summary:         summarize(results, e.classifier != nil),
		Timestamp:       e.now().UTC(),
		DetailedResults: results,
	}, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, q TestQuery, topK int) (QueryResult, error) {
	res := QueryResult{Query: q.Query, ExpectedDomains: q.ExpectedDomains}
	if e.classifier != nil {
		res.PredictedDomain = e.classifier.ClassifyQuery(ctx, q.Query)
	}

	hits, err := e.search.Search(ctx, q.Query, topK, "")
	if err != nil {
		return res, err
	}

	items := hits.Items
	res.RetrievedChunks = len(items)
	for _, it := range items {
		res.Details = append(res.Details, Retrieved{
			ID:             it.ID,
			Domain:         it.Metadata.Domain,
			Title:          it.Metadata.Title,
			Distance:       it.Distance,
			ContentPreview: preview(it.Content),
		})
	}
	res.Precision, res.Recall, res.F1, res.AvgRelevance = Score(items, q)
	return res, nil
}

// Score computes precision, recall, F1 and mean relevance for one query's
// results.
func Score(items []rag.SearchResult, q TestQuery) (precision, recall, f1, avgRelevance float64) {
	if len(items) == 0 {
		return 0, 0, 0, 0
	}

	var relevant, total float64
	for _, it := range items {
		rel := 0.0
		if domainMatches(it.Metadata.Domain, q.ExpectedDomains) && titleMatches(it.Metadata.Title, q.ExpectedChunks) {
			rel = 1
		}
		total += rel
		if rel >= q.threshold() {
			relevant++
		}
	}

	precision = clamp(relevant / float64(len(items)))
	if expected := len(q.ExpectedDomains) + len(q.ExpectedChunks); expected > 0 {
		recall = clamp(relevant / float64(expected))
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1, total / float64(len(items))
}

func domainMatches(d rag.Domain, expected []string) bool {
	return len(expected) == 0 || slices.Contains(expected, string(d))
}

func titleMatches(title string, expected []string) bool {
	if len(expected) == 0 {
		return true
	}
	for _, want := range expected {
		if strings.Contains(title, want) {
			return true
		}
	}
	return false
}

func summarize(results []QueryResult, classified bool) Summary {
	s := Summary{TotalQueries: len(results), ClassifierUsed: classified}
	if len(results) == 0 {
		return s
	}
	n := float64(len(results))
	correct := 0
	for _, r := range results {
		s.AveragePrecision += r.Precision / n
		s.AverageRecall += r.Recall / n
		s.AverageF1 += r.F1 / n
		s.AverageRelevance += r.AvgRelevance / n
		if classified && r.PredictedDomain != "" && slices.Contains(r.ExpectedDomains, string(r.PredictedDomain)) {
			correct++
		}
	}
	if classified {
		s.DomainAccuracy = float64(correct) / n
	}
	return s
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}

// SampleQueries returns the built-in query set used when no file is given.
func SampleQueries() []TestQuery {
	return []TestQuery{
		{
			Query:              "What are the council bylaws?",
			ExpectedDomains:    []string{string(rag.DomainByLaws)},
			ExpectedChunks:     []string{"bylaws.txt"},
			RelevanceThreshold: 0.7,
		},
		{
			Query:              "How do I pay my bills?",
			ExpectedDomains:    []string{string(rag.DomainBilling)},
			ExpectedChunks:     []string{"bill_payments.txt"},
			RelevanceThreshold: 0.7,
		},
		{
			Query:              "What licenses do I need?",
			ExpectedDomains:    []string{string(rag.DomainLicensing)},
			ExpectedChunks:     []string{"operating_licenses.txt"},
			RelevanceThreshold: 0.7,
		},
		{
			Query:              "Are there any public notices?",
			ExpectedDomains:    []string{string(rag.DomainNotices)},
			ExpectedChunks:     []string{"public_notices.txt"},
			RelevanceThreshold: 0.7,
		},
	}
}

// LoadQueries reads a JSON array of TestQuery from path. A missing file
// yields an error wrapping os.ErrNotExist.
func LoadQueries(path string) ([]TestQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evaluation: read queries: %w", err)
	}
	var qs []TestQuery
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("evaluation: parse %s: %w", path, err)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("evaluation: %s: entry %d has an empty query", path, i)
		}
	}
	return qs, nil
}

// WriteReport writes r to path as indented JSON.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("evaluation: encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("evaluation: write report: %w", err)
	}
	return nil
}
