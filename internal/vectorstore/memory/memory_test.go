package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/civic-go/internal/rag"
)

func chunk(id string) rag.Chunk {
	return rag.Chunk{ID: id, Content: "content " + id, Metadata: rag.Metadata{Title: id}}
}

func TestStore_SearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	require.NoError(t, s.Upsert(ctx,
		[]rag.Chunk{chunk("a"), chunk("b"), chunk("c")},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	))

	got, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestStore_EmptySearch(t *testing.T) {
	got, err := New(2).Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_UpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []rag.Chunk{chunk("a"), chunk("b")}, [][]float32{{1, 0}, {0, 1}}))

	replaced := chunk("a")
	replaced.Content = "new"
	require.NoError(t, s.Upsert(ctx, []rag.Chunk{replaced}, [][]float32{{0, 1}}))

	n, _ := s.Count(ctx)
	assert.Equal(t, 2, n)

	got, err := s.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	// Equal distances keep insertion order: "a" was inserted first.
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "new", got[0].Content)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := New(3)
	err := s.Upsert(context.Background(), []rag.Chunk{chunk("a")}, [][]float32{{1, 0}})
	assert.True(t, errors.Is(err, rag.ErrDimensionMismatch))

	err = s.Upsert(context.Background(), []rag.Chunk{chunk("a")}, nil)
	assert.Error(t, err)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	require.NoError(t, s.Upsert(ctx, []rag.Chunk{chunk("a"), chunk("b")}, [][]float32{{1}, {1}}))
	require.NoError(t, s.Delete(ctx, []string{"a", "missing"}))

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
	got, _ := s.Search(ctx, []float32{1}, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestStore_IDsByTitle(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	tariffs := func(id string) rag.Chunk {
		return rag.Chunk{ID: id, Content: id, Metadata: rag.Metadata{Title: "tariffs"}}
	}
	require.NoError(t, s.Upsert(ctx,
		[]rag.Chunk{tariffs("tariffs_0"), tariffs("tariffs_1"), chunk("refuse_0")},
		[][]float32{{1}, {1}, {1}}))

	ids, err := s.IDsByTitle(ctx, "tariffs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tariffs_0", "tariffs_1"}, ids)

	ids, err = s.IDsByTitle(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Upsert(ctx, []rag.Chunk{chunk(string(rune('a' + i)))}, [][]float32{{1, float32(i)}})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Search(ctx, []float32{1, 0}, 3)
		}()
	}
	wg.Wait()
	n, _ := s.Count(ctx)
	assert.Equal(t, 8, n)
}
