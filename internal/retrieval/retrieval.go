// Package retrieval assembles the evidence for a query: the query is
// classified, the vector index is searched with that domain as an advisory
// filter, structured records of the same domain are matched by substring,
// and cached website pages contribute snippets.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/structured"
	"github.com/54b3r/civic-go/internal/webcache"
)

const (
	defaultMaxRecords = 5
	defaultMaxWeb     = 3
)

// QueryClassifier assigns a domain to a query.
type QueryClassifier interface {
	ClassifyQuery(ctx context.Context, query string) rag.Domain
}

// Searcher is the vector index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, domain rag.Domain) (*index.Results, error)
}

// RecordSearcher is the structured-data merger.
type RecordSearcher interface {
	Search(query string, domain rag.Domain) []structured.Match
}

// WebSource returns cached website documents.
type WebSource interface {
	Fetch(ctx context.Context, force bool) ([]rag.Document, error)
}

// Config holds the collaborators of a Service. Only Index is required.
type Config struct {
	Classifier QueryClassifier
	Index      Searcher
	Records    RecordSearcher
	Web        WebSource

	// TopK is the default number of chunks (index.DefaultTopK if zero).
	TopK int

	// MaxRecords caps structured matches (5 if zero).
	MaxRecords int

	// MaxWeb caps website snippets (3 if zero).
	MaxWeb int

	Logger *slog.Logger
}

// Result is the evidence gathered for one query.
type Result struct {
	Query          string             `json:"query"`
	Domain         rag.Domain         `json:"domain"`
	Chunks         []rag.SearchResult `json:"chunks"`
	Records        []structured.Match `json:"records,omitempty"`
	Web            []webcache.Snippet `json:"web,omitempty"`
	FilterBypassed bool               `json:"filter_bypassed"`
}

// Service runs retrieval.
type Service struct {
	cfg Config
	log *slog.Logger
}

// New returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("retrieval: index must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = index.DefaultTopK
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if cfg.MaxWeb <= 0 {
		cfg.MaxWeb = defaultMaxWeb
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, log: log.With(slog.String("component", "retrieval"))}, nil
}

// Retrieve gathers evidence for query. topK of zero uses the configured
// default. An empty domain is resolved by the classifier (general when no
// classifier is set). Only embedding or store failures are returned as
// errors; the web source degrades to no snippets.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, domain rag.Domain) (*Result, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if domain == "" {
		domain = rag.DomainGeneral
		if s.cfg.Classifier != nil {
			domain = s.cfg.Classifier.ClassifyQuery(ctx, query)
		}
	}

	hits, err := s.cfg.Index.Search(ctx, query, topK, domain)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	res := &Result{
		Query:          query,
		Domain:         domain,
		Chunks:         hits.Items,
		FilterBypassed: hits.FilterBypassed,
	}

	if s.cfg.Records != nil {
		matches := s.cfg.Records.Search(query, domain)
		if len(matches) > s.cfg.MaxRecords {
			matches = matches[:s.cfg.MaxRecords]
		}
		res.Records = matches
	}

	if s.cfg.Web != nil {
		docs, err := s.cfg.Web.Fetch(ctx, false)
		if err != nil {
			s.log.Warn("retrieval: web documents unavailable", slog.String("error", err.Error()))
		} else {
			snippets := webcache.SearchContent(query, docs)
			if len(snippets) > s.cfg.MaxWeb {
				snippets = snippets[:s.cfg.MaxWeb]
			}
			res.Web = snippets
		}
	}

	s.log.Debug("retrieval: done",
		slog.String("domain", string(domain)),
		slog.Int("chunks", len(res.Chunks)),
		slog.Int("records", len(res.Records)),
		slog.Int("web", len(res.Web)),
		slog.Bool("filter_bypassed", res.FilterBypassed),
	)
	return res, nil
}

// Empty reports whether no evidence was found.
func (r *Result) Empty() bool {
	return len(r.Chunks) == 0 && len(r.Records) == 0 && len(r.Web) == 0
}

// Context renders the evidence as a prompt context block. Each chunk is
// labelled with its title and domain.
func (r *Result) Context() string {
	var sb strings.Builder
	for i, c := range r.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s | %s]\n%s", c.Metadata.Title, c.Metadata.Domain, c.Content)
	}
	if len(r.Records) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Structured records:")
		for _, m := range r.Records {
			fmt.Fprintf(&sb, "\n- (%s) %s", m.Source, strings.ReplaceAll(m.Record.Text(), "\n", "; "))
		}
	}
	if len(r.Web) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("From the council website:")
		for _, w := range r.Web {
			fmt.Fprintf(&sb, "\n- %s (%s): %s", w.Title, w.URL, w.Snippet)
		}
	}
	return sb.String()
}
