package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/54b3r/civic-go/internal/rag"
)

// DefaultHashingDimensions is the vector size of the Hashing embedder.
const DefaultHashingDimensions = 256

// stopwords are dropped before hashing so that short queries are dominated
// by their content words.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "do": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "my": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "what": {}, "when": {}, "where": {}, "with": {}, "you": {},
}

// Hashing is a deterministic, offline embedder based on the hashing trick:
// each cleaned, lightly stemmed token is hashed into a signed bucket and
// the resulting term-frequency vector is L2-normalised. It needs no model
// and no network, which makes it the embedder of choice for tests and
// air-gapped deployments.
type Hashing struct {
	dims int
}

// NewHashing returns a Hashing embedder producing vectors of length dims.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &Hashing{dims: dims}
}

// Dimensions returns the output vector length.
func (h *Hashing) Dimensions() int { return h.dims }

// Embed implements rag.Embedder.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, rag.NewEmbeddingError("hash", len(texts), err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	vec := make([]float32, h.dims)
	for _, tok := range strings.Fields(rag.CleanText(text)) {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		tok = stem(tok)
		hf := fnv.New64a()
		_, _ = hf.Write([]byte(tok))
		sum := hf.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.dims)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// stem strips a plural suffix so that "bills" and "bill" share a bucket.
func stem(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss"):
		return tok[:len(tok)-1]
	}
	return tok
}
