package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/classifier"
	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/embedder"
	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/structured"
	"github.com/54b3r/civic-go/internal/vectorstore/memory"
)

type fakeWeb struct {
	docs []rag.Document
	err  error
}

func (f fakeWeb) Fetch(context.Context, bool) ([]rag.Document, error) { return f.docs, f.err }

type failingIndex struct{}

func (failingIndex) Search(context.Context, string, int, rag.Domain) (*index.Results, error) {
	return nil, &rag.EmbeddingError{Provider: "ollama", Inputs: 1, Err: errors.New("down")}
}

func setup(t *testing.T, web WebSource) *Service {
	t.Helper()
	ctx := context.Background()
	vocab, err := config.DefaultVocabulary()
	require.NoError(t, err)
	cls := classifier.NewKeyword(vocab, nil)

	ix := index.New(memory.New(0), embedder.NewHashing(embedder.DefaultHashingDimensions))
	_, err = ix.Add(ctx, []rag.Document{
		{Content: "Water bills are due on the 15th. Payment can be made at the civic centre.",
			Metadata: rag.Metadata{Title: "bill_payments.txt", Domain: rag.DomainBilling}},
		{Content: "A trading permit is required for every market stall.",
			Metadata: rag.Metadata{Title: "operating_licenses.txt", Domain: rag.DomainLicensing}},
	})
	require.NoError(t, err)

	m := structured.New(cls, nil)
	m.Add("bill_payments.json", []structured.Record{
		{{Key: "method", Value: "Paynow"}, {Key: "fee", Value: "0.50"}},
	})
	m.Add("faq.json", []structured.Record{
		{{Key: "q", Value: "Paynow accepted?"}},
	})

	s, err := New(Config{Classifier: cls, Index: ix, Records: m, Web: web})
	require.NoError(t, err)
	return s
}

func TestRetrieveClassifiesAndFilters(t *testing.T) {
	s := setup(t, nil)
	res, err := s.Retrieve(context.Background(), "water bill payment", 2, "")
	require.NoError(t, err)
	assert.Equal(t, rag.DomainBilling, res.Domain)
	require.NotEmpty(t, res.Chunks)
	for _, c := range res.Chunks {
		assert.Equal(t, rag.DomainBilling, c.Metadata.Domain)
	}
	assert.False(t, res.FilterBypassed)
	assert.Contains(t, res.Context(), "[bill_payments.txt | billing]")
}

func TestRetrieveStructuredRecordsByDomain(t *testing.T) {
	s := setup(t, nil)
	res, err := s.Retrieve(context.Background(), "paynow", 2, rag.DomainBilling)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "bill_payments.json", res.Records[0].Source)
	assert.Contains(t, res.Context(), "- (bill_payments.json) method: Paynow; fee: 0.50")

	res, err = s.Retrieve(context.Background(), "paynow", 2, rag.DomainGeneral)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestRetrieveWebSnippets(t *testing.T) {
	web := fakeWeb{docs: []rag.Document{{
		Content:  "Council offices open at 8am. The permit office is on the first floor.",
		Metadata: rag.Metadata{Title: "Contact", Extra: map[string]string{"url": "https://council.example/contact/"}},
	}}}
	s := setup(t, web)
	res, err := s.Retrieve(context.Background(), "permit office", 2, "")
	require.NoError(t, err)
	require.Len(t, res.Web, 1)
	assert.True(t, strings.HasPrefix(res.Web[0].Snippet, "..."))
	assert.Contains(t, res.Context(), "From the council website:")
}

func TestRetrieveWebFailureDegrades(t *testing.T) {
	s := setup(t, fakeWeb{err: rag.ErrFetchFailed})
	res, err := s.Retrieve(context.Background(), "permit", 2, "")
	require.NoError(t, err)
	assert.Empty(t, res.Web)
	assert.NotEmpty(t, res.Chunks)
}

func TestRetrievePropagatesEmbeddingError(t *testing.T) {
	s, err := New(Config{Index: failingIndex{}})
	require.NoError(t, err)
	_, err = s.Retrieve(context.Background(), "anything", 0, "")
	var embErr *rag.EmbeddingError
	assert.True(t, errors.As(err, &embErr))
}

func TestNewRequiresIndex(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestEmptyResult(t *testing.T) {
	r := &Result{}
	assert.True(t, r.Empty())
	assert.Equal(t, "", r.Context())
}
