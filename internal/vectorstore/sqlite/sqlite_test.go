package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/rag"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UpsertSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	chunks := []rag.Chunk{
		{ID: "bylaws_0", Content: "noise bylaw", Metadata: rag.Metadata{Title: "bylaws", Domain: rag.DomainByLaws}},
		{ID: "faq_0", Content: "faq", Metadata: rag.Metadata{Title: "faq", Domain: rag.DomainFAQ, Extra: map[string]string{"k": "v"}}},
	}
	require.NoError(t, s.Upsert(ctx, chunks, [][]float32{{1, 0}, {0, 1}}))

	got, err := s.Search(ctx, []float32{0.1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "faq_0", got[0].ID)
	assert.Equal(t, rag.DomainFAQ, got[0].Metadata.Domain)
	assert.Equal(t, "v", got[0].Metadata.Extra["k"])

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, []rag.Chunk{{ID: "a", Content: "old"}}, [][]float32{{1, 0}}))
	require.NoError(t, s.Upsert(ctx, []rag.Chunk{{ID: "a", Content: "new"}}, [][]float32{{1, 0}}))

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
	got, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].Content)
}

func TestStore_DeleteAndEmpty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	got, err := s.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Upsert(ctx, []rag.Chunk{{ID: "a"}}, [][]float32{{1}}))
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	n, _ := s.Count(ctx)
	assert.Zero(t, n)
}

func TestStore_IDsByTitle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	chunks := []rag.Chunk{
		{ID: "tariffs_0", Content: "a", Metadata: rag.Metadata{Title: "tariffs"}},
		{ID: "tariffs_1", Content: "b", Metadata: rag.Metadata{Title: "tariffs"}},
		{ID: "refuse_0", Content: "c", Metadata: rag.Metadata{Title: "refuse"}},
	}
	require.NoError(t, s.Upsert(ctx, chunks, [][]float32{{1, 0}, {0, 1}, {1, 1}}))

	ids, err := s.IDsByTitle(ctx, "tariffs")
	require.NoError(t, err)
	assert.Equal(t, []string{"tariffs_0", "tariffs_1"}, ids)

	require.NoError(t, s.Delete(ctx, ids[1:]))
	ids, err = s.IDsByTitle(ctx, "tariffs")
	require.NoError(t, err)
	assert.Equal(t, []string{"tariffs_0"}, ids)

	ids, err = s.IDsByTitle(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []rag.Chunk{{ID: "a", Content: "kept"}}, [][]float32{{0.5, 0.25}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Search(ctx, []float32{0.5, 0.25}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Content)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
}

func TestVectorCodec(t *testing.T) {
	v := []float32{1.5, -2.25, 0}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
