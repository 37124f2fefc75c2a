// Package classifier assigns topical domains to queries and documents.
//
// Two modes are supported. Keyword mode scores each domain by how many of
// its keywords occur in the lowercased text and picks the highest score,
// breaking ties by vocabulary order. Embedding mode compares the query
// embedding against one precomputed embedding per domain (its keywords
// joined with spaces) and picks the most similar. Neither mode ever fails
// a classification: ambiguous input resolves to the general domain.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/rag"
)

// Mode selects the query classification strategy.
type Mode string

const (
	ModeKeyword   Mode = "keyword"
	ModeEmbedding Mode = "embedding"
)

// ParseMode validates a mode name. The empty string means keyword.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeKeyword:
		return ModeKeyword, nil
	case ModeEmbedding:
		return ModeEmbedding, nil
	}
	return "", fmt.Errorf("classifier: unknown mode %q (valid: keyword, embedding)", s)
}

type domainEntry struct {
	domain   rag.Domain
	keywords []string
	vector   []float32
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	mode      Mode
	domains   []domainEntry
	documents map[string]rag.Domain
	embedder  rag.Embedder
	log       *slog.Logger
}

// NewKeyword returns a keyword-mode classifier over vocab.
func NewKeyword(vocab *config.Vocabulary, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	c := &Classifier{
		mode:      ModeKeyword,
		documents: make(map[string]rag.Domain, len(vocab.Documents)),
		log:       log.With(slog.String("component", "classifier")),
	}
	for _, d := range vocab.Domains {
		c.domains = append(c.domains, domainEntry{
			domain:   rag.Domain(d.Name),
			keywords: d.Keywords,
		})
	}
	for id, d := range vocab.Documents {
		c.documents[id] = rag.Domain(d)
	}
	return c
}

// NewEmbedding returns an embedding-mode classifier. Domain embeddings are
// computed once here in a single batch; an embedding failure is returned so
// it surfaces at startup rather than on the first query.
func NewEmbedding(ctx context.Context, vocab *config.Vocabulary, emb rag.Embedder, log *slog.Logger) (*Classifier, error) {
	c := NewKeyword(vocab, log)
	texts := make([]string, len(c.domains))
	for i, d := range c.domains {
		texts[i] = strings.Join(d.keywords, " ")
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("classifier: embed domain vocabulary: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("classifier: expected %d domain embeddings, got %d", len(texts), len(vecs))
	}
	for i := range c.domains {
		c.domains[i].vector = vecs[i]
	}
	c.mode = ModeEmbedding
	c.embedder = emb
	return c, nil
}

// Mode reports the active query classification mode.
func (c *Classifier) Mode() Mode { return c.mode }

// ClassifyQuery returns the domain for a free-text query. In embedding
// mode an embedding failure is logged and keyword scoring is used instead.
func (c *Classifier) ClassifyQuery(ctx context.Context, query string) rag.Domain {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rag.DomainGeneral
	}
	if c.mode == ModeEmbedding {
		d, err := c.classifyEmbedding(ctx, q)
		if err == nil {
			return d
		}
		c.log.Warn("classifier: embedding classification failed, using keywords",
			slog.String("error", err.Error()),
		)
	}
	return c.classifyKeywords(q)
}

// ClassifyDocument returns the domain for a document identifier such as a
// file name or table name. The identifier is lowercased and stripped of its
// directory and extension, then looked up in the exact mapping before
// falling back to keyword scoring.
func (c *Classifier) ClassifyDocument(identifier string) rag.Domain {
	id := normaliseIdentifier(identifier)
	if id == "" {
		return rag.DomainGeneral
	}
	if d, ok := c.documents[id]; ok {
		return d
	}
	return c.classifyKeywords(id)
}

// Scores returns the keyword score of every domain for text, in vocabulary
// order.
func (c *Classifier) Scores(text string) map[rag.Domain]int {
	lower := strings.ToLower(text)
	out := make(map[rag.Domain]int, len(c.domains))
	for _, d := range c.domains {
		out[d.domain] = keywordScore(lower, d.keywords)
	}
	return out
}

func (c *Classifier) classifyKeywords(lower string) rag.Domain {
	best, bestScore := rag.DomainGeneral, 0
	for _, d := range c.domains {
		if s := keywordScore(lower, d.keywords); s > bestScore {
			best, bestScore = d.domain, s
		}
	}
	return best
}

func (c *Classifier) classifyEmbedding(ctx context.Context, q string) (rag.Domain, error) {
	vecs, err := c.embedder.Embed(ctx, []string{q})
	if err != nil {
		return "", err
	}
	if len(vecs) != 1 {
		return "", fmt.Errorf("classifier: expected 1 query embedding, got %d", len(vecs))
	}
	qv := vecs[0]
	if zeroNorm(qv) {
		return rag.DomainGeneral, nil
	}

	best, bestScore := rag.DomainGeneral, -1.0
	for _, d := range c.domains {
		if s := rag.Cosine(qv, d.vector); s > bestScore {
			best, bestScore = d.domain, s
		}
	}
	return best, nil
}

// keywordScore counts the keywords that occur in text as substrings.
func keywordScore(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func normaliseIdentifier(identifier string) string {
	id := strings.ToLower(strings.TrimSpace(identifier))
	id = filepath.Base(filepath.ToSlash(id))
	if id == "." || id == "/" {
		return ""
	}
	return strings.TrimSuffix(id, filepath.Ext(id))
}

func zeroNorm(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
