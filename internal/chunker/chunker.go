// Package chunker splits document text into overlapping chunks using a
// recursive list of separators: paragraphs first, then lines, sentences,
// words, and finally single characters.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/civic-go/internal/rag"
)

// DefaultChunkSize is the maximum number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the number of characters carried between chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators is the separator priority list.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text recursively. It is stateless after construction and
// safe for concurrent use.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list. The list should end
// with "" so that oversized words can still be split.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = append([]string(nil), seps...)
		}
	}
}

// New returns a Chunker with the given options applied.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Overlap must stay below the chunk size or merging never advances.
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Chunk splits doc into chunks with ids "{title}_{i}", i starting at 0.
// Each chunk inherits the document metadata with ChunkID set.
// Empty or whitespace-only content yields no chunks.
func (c *Chunker) Chunk(doc rag.Document) []rag.Chunk {
	pieces := c.Split(doc.Content)
	if len(pieces) == 0 {
		return nil
	}
	chunks := make([]rag.Chunk, 0, len(pieces))
	for i, p := range pieces {
		md := doc.Metadata.Clone()
		md.ChunkID = i
		chunks = append(chunks, rag.Chunk{
			ID:       fmt.Sprintf("%s_%d", doc.Metadata.Title, i),
			Content:  p,
			Metadata: md,
		})
	}
	return chunks
}

// Split returns the text pieces for text in order.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, s := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(s) < c.size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, s)
		} else {
			final = append(final, c.split(s, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs small splits into chunks no longer than size, keeping up to
// overlap characters of trailing context from the previous chunk.
func (c *Chunker) merge(splits []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, d := range splits {
		n := utf8.RuneCountInString(d)
		if total+n > c.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.overlap || (total+n > c.size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep and re-attaches sep to the start of
// every piece after the first. An empty sep splits into characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
