// Package index implements the vector index over the civic corpus:
// documents are chunked, embedded in a single batch, and upserted into a
// rag.VectorStore; searches embed the query, over-fetch candidates, and
// apply an optional domain filter with an unfiltered fallback.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/civic-go/internal/chunker"
	"github.com/54b3r/civic-go/internal/rag"
)

const (
	// DefaultTopK is used when a search asks for zero or fewer results.
	DefaultTopK = 5

	// defaultOverfetch multiplies topK when a domain filter is applied.
	defaultOverfetch = 3
)

// Results is the outcome of a search.
type Results struct {
	// Items are ordered by ascending distance, at most topK long.
	Items []rag.SearchResult `json:"items"`

	// Domain is the filter that was requested.
	Domain rag.Domain `json:"domain,omitempty"`

	// FilterBypassed is set when a domain filter matched nothing and the
	// unfiltered top results were returned instead.
	FilterBypassed bool `json:"filter_bypassed"`
}

// Index serialises writers while allowing concurrent searches. addMu
// orders whole Add calls; mu guards the store update against searches.
type Index struct {
	addMu     sync.Mutex
	mu        sync.RWMutex
	store     rag.VectorStore
	embedder  rag.Embedder
	chunker   *chunker.Chunker
	overfetch int
	log       *slog.Logger
	metrics   *indexMetrics
}

// Option configures an Index.
type Option func(*Index)

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(ix *Index) { ix.chunker = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(ix *Index) {
		if log != nil {
			ix.log = log
		}
	}
}

// WithRegisterer registers the index metrics on reg. Without it the
// metrics go to a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(ix *Index) { ix.metrics = newIndexMetrics(reg) }
}

// WithOverfetch sets the candidate multiplier used for filtered searches.
// Values below 2 are raised to 2.
func WithOverfetch(n int) Option {
	return func(ix *Index) {
		if n < 2 {
			n = 2
		}
		ix.overfetch = n
	}
}

// New returns an Index writing to store and embedding with emb.
func New(store rag.VectorStore, emb rag.Embedder, opts ...Option) *Index {
	ix := &Index{
		store:     store,
		embedder:  emb,
		chunker:   chunker.New(),
		overfetch: defaultOverfetch,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.metrics == nil {
		ix.metrics = newIndexMetrics(prometheus.NewRegistry())
	}
	ix.log = ix.log.With(slog.String("component", "index"))
	return ix
}

// Add chunks every document, embeds all chunks in one batch, and upserts
// them. A document without a title is named "doc_" plus a UUID derived
// from its content, so untitled documents from different calls never
// collide. Re-adding a title replaces all of its chunks, including ones
// beyond the new chunk count; within one call the last document with a
// given title wins. It returns the number of chunks written. An embedding
// failure is returned as *rag.EmbeddingError and nothing is written.
//
// Chunking and embedding run without blocking searches; only the store
// update takes the write lock.
func (ix *Index) Add(ctx context.Context, docs []rag.Document) (int, error) {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	docs = lastPerTitle(docs)
	var chunks []rag.Chunk
	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc.Metadata.Title)
		chunks = append(chunks, ix.chunker.Chunk(doc)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("index: add: %w", rag.NewEmbeddingError("embedder", len(texts), err))
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("index: add: %w", rag.NewEmbeddingError("embedder", len(texts),
			fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stale, err := ix.staleIDs(ctx, titles, chunks)
	if err != nil {
		return 0, fmt.Errorf("index: add: %w", err)
	}
	if len(stale) > 0 {
		if err := ix.store.Delete(ctx, stale); err != nil {
			return 0, fmt.Errorf("index: add: remove stale chunks: %w", err)
		}
	}
	if err := ix.store.Upsert(ctx, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("index: add: %w", err)
	}
	ix.metrics.chunksAdded.Add(float64(len(chunks)))
	ix.log.Info("index: documents added",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)),
		slog.Int("stale_removed", len(stale)),
	)
	return len(chunks), nil
}

// lastPerTitle fills in default metadata and keeps only the last document
// for each title, in order of that last occurrence.
func lastPerTitle(docs []rag.Document) []rag.Document {
	normalised := make([]rag.Document, len(docs))
	last := make(map[string]int, len(docs))
	for i, doc := range docs {
		doc.Metadata = doc.Metadata.Clone()
		if doc.Metadata.Title == "" {
			doc.Metadata.Title = "doc_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.Content)).String()
		}
		if doc.Metadata.Domain == "" {
			doc.Metadata.Domain = rag.DomainGeneral
		}
		if doc.Metadata.DataType == "" {
			doc.Metadata.DataType = rag.DataTypeText
		}
		normalised[i] = doc
		last[doc.Metadata.Title] = i
	}
	out := make([]rag.Document, 0, len(last))
	for i, doc := range normalised {
		if last[doc.Metadata.Title] == i {
			out = append(out, doc)
		}
	}
	return out
}

// staleIDs lists stored chunk ids under titles that the new chunks do not
// overwrite.
func (ix *Index) staleIDs(ctx context.Context, titles []string, chunks []rag.Chunk) ([]string, error) {
	fresh := make(map[string]struct{}, len(chunks))
	for _, ch := range chunks {
		fresh[ch.ID] = struct{}{}
	}
	var stale []string
	for _, title := range titles {
		ids, err := ix.store.IDsByTitle(ctx, title)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := fresh[id]; !ok {
				stale = append(stale, id)
			}
		}
	}
	return stale, nil
}

// Search returns up to topK chunks nearest to query. When domain filters
// (anything but "" and general), candidates are over-fetched and only
// chunks in that domain are kept; if none match, the unfiltered top
// results are returned with FilterBypassed set. An empty index yields an
// empty result and no error.
func (ix *Index) Search(ctx context.Context, query string, topK int, domain rag.Domain) (*Results, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	start := time.Now()
	defer func() { ix.metrics.searchDuration.Observe(time.Since(start).Seconds()) }()

	if topK <= 0 {
		topK = DefaultTopK
	}
	filtered := domain.Filters()
	ix.metrics.searches.WithLabelValues(fmt.Sprint(filtered)).Inc()
	res := &Results{Items: []rag.SearchResult{}, Domain: domain}

	n, err := ix.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	if n == 0 {
		return res, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", rag.NewEmbeddingError("embedder", 1, err))
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("index: search: %w", rag.NewEmbeddingError("embedder", 1,
			fmt.Errorf("expected 1 embedding, got %d", len(vecs))))
	}

	fetch := topK
	if filtered {
		fetch = topK * ix.overfetch
	}
	candidates, err := ix.store.Search(ctx, vecs[0], fetch)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	if !filtered {
		res.Items = truncate(candidates, topK)
		return res, nil
	}

	for _, c := range candidates {
		if c.Metadata.Domain == domain {
			res.Items = append(res.Items, c)
			if len(res.Items) == topK {
				break
			}
		}
	}
	if len(res.Items) == 0 && len(candidates) > 0 {
		res.Items = truncate(candidates, topK)
		res.FilterBypassed = true
		ix.metrics.filterBypassed.WithLabelValues(string(domain)).Inc()
		ix.log.Warn("index: no chunks matched domain filter, returning unfiltered results",
			slog.String("domain", string(domain)),
			slog.Int("candidates", len(candidates)),
		)
	}
	return res, nil
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.store.Count(ctx)
}

func truncate(items []rag.SearchResult, n int) []rag.SearchResult {
	if len(items) > n {
		return items[:n]
	}
	return items
}
