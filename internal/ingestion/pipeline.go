// Package ingestion loads the council corpus into the vector index. It reads
// the data directory (prose .txt files and structured .json / SQLite
// sources), optionally adds the cached council website, and can watch the
// directory to re-ingest on change. It backs the `civic ingest` command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/structured"
)

// MinContentLength is the shortest trimmed text document that is indexed.
const MinContentLength = 10

// Indexer receives documents to chunk, embed and store.
type Indexer interface {
	Add(ctx context.Context, docs []rag.Document) (int, error)
}

// DocumentClassifier assigns a domain from a file or source name.
type DocumentClassifier interface {
	ClassifyDocument(identifier string) rag.Domain
}

// RecordLoader is the structured merger.
type RecordLoader interface {
	Load(ctx context.Context, paths ...string) (map[string][]structured.Record, error)
	ToDocuments() []rag.Document
}

// WebSource returns the cached council website documents.
type WebSource interface {
	Fetch(ctx context.Context, force bool) ([]rag.Document, error)
}

// Config holds the pipeline collaborators. Index is required.
type Config struct {
	Index      Indexer
	Classifier DocumentClassifier
	Records    RecordLoader
	Web        WebSource

	// IncludeWeb adds website documents to each run.
	IncludeWeb bool

	Logger *slog.Logger
}

// Report summarises one ingestion run.
type Report struct {
	TextDocuments       int           `json:"text_documents"`
	Skipped             []string      `json:"skipped,omitempty"`
	StructuredSources   int           `json:"structured_sources"`
	StructuredDocuments int           `json:"structured_documents"`
	WebDocuments        int           `json:"web_documents"`
	WebError            string        `json:"web_error,omitempty"`
	Chunks              int           `json:"chunks"`
	Duration            time.Duration `json:"duration"`
}

// Documents is the total number of documents handed to the index.
func (r *Report) Documents() int {
	return r.TextDocuments + r.StructuredDocuments + r.WebDocuments
}

// Pipeline runs ingestion.
type Pipeline struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

// NewPipeline validates cfg and returns a Pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg: cfg,
		log: log.With(slog.String("component", "ingestion")),
		now: time.Now,
	}, nil
}

// Ingest loads dir and adds everything found to the index. Re-running it is
// idempotent: chunk ids derive from titles, so documents replace themselves.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*Report, error) {
	start := p.now()
	rep := &Report{}

	texts, skipped, err := LoadTextDocuments(dir, p.cfg.Classifier)
	if err != nil {
		return nil, err
	}
	rep.TextDocuments = len(texts)
	rep.Skipped = skipped
	for _, s := range skipped {
		p.log.Warn("ingestion: skipping document with insufficient content", slog.String("file", s))
	}
	docs := texts

	if p.cfg.Records != nil {
		loaded, err := p.cfg.Records.Load(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("ingestion: structured: %w", err)
		}
		rep.StructuredSources = len(loaded)
		recDocs := p.cfg.Records.ToDocuments()
		rep.StructuredDocuments = len(recDocs)
		docs = append(docs, recDocs...)
	}

	if p.cfg.IncludeWeb && p.cfg.Web != nil {
		webDocs, err := p.cfg.Web.Fetch(ctx, false)
		if err != nil {
			rep.WebError = err.Error()
			p.log.Warn("ingestion: website documents unavailable", slog.String("error", err.Error()))
		} else {
			rep.WebDocuments = len(webDocs)
			docs = append(docs, webDocs...)
		}
	}

	if len(docs) == 0 {
		rep.Duration = p.now().Sub(start)
		p.log.Warn("ingestion: no documents found", slog.String("dir", dir))
		return rep, nil
	}

	n, err := p.cfg.Index.Add(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("ingestion: index: %w", err)
	}
	rep.Chunks = n
	rep.Duration = p.now().Sub(start)

	p.log.Info("ingestion: complete",
		slog.String("dir", dir),
		slog.Int("text", rep.TextDocuments),
		slog.Int("structured", rep.StructuredDocuments),
		slog.Int("web", rep.WebDocuments),
		slog.Int("chunks", rep.Chunks),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// LoadTextDocuments reads every .txt file directly inside dir in name
// order. Files whose trimmed content is shorter than MinContentLength are
// returned in skipped instead. A missing directory is an error.
func LoadTextDocuments(dir string, cls DocumentClassifier) (docs []rag.Document, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("ingestion: data directory %q does not exist", dir)
		}
		return nil, nil, fmt.Errorf("ingestion: read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && KindOf(e.Name()) == KindText {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("ingestion: read %s: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if len(content) < MinContentLength {
			skipped = append(skipped, name)
			continue
		}
		docs = append(docs, rag.Document{Content: content, Metadata: TextMetadata(path, cls)})
	}
	return docs, skipped, nil
}
