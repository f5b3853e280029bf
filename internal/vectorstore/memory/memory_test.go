package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/rag-backend/internal/core"
)

func seedIndex(t *testing.T) (*Index, []string) {
	t.Helper()
	idx, err := New(3)
	require.NoError(t, err)

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.9, 0.1, 0},
	}
	texts := []string{"alpha", "beta", "gamma", "almost alpha"}
	metas := []core.ChunkMetadata{
		{DocumentID: "doc-1", Filename: "a.md", ChunkIndex: 0},
		{DocumentID: "doc-1", Filename: "a.md", ChunkIndex: 1},
		{DocumentID: "doc-2", Filename: "b.md", ChunkIndex: 0},
		{DocumentID: "doc-2", Filename: "b.md", ChunkIndex: 1},
	}
	ids, err := idx.Upsert(context.Background(), vectors, texts, metas)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	return idx, ids
}

func TestNewRejectsBadDimension(t *testing.T) {
	_, err := New(0)
	var confErr *core.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	_, err = idx.Upsert(context.Background(), [][]float32{{1, 0}}, []string{"short"}, []core.ChunkMetadata{{DocumentID: "d"}})
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, 0, idx.Len())
}

func TestUpsertRejectsMismatchedLengths(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	_, err = idx.Upsert(context.Background(), [][]float32{{1, 0, 0}}, []string{"a", "b"}, []core.ChunkMetadata{{}})
	assert.Error(t, err)
}

func TestSearchSelfSimilarityRanksFirst(t *testing.T) {
	idx, _ := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 4, core.SearchFilter{}, core.MethodCosine)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "alpha", results[0].Text)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Equal(t, "almost alpha", results[1].Text)
	for i, r := range results {
		assert.Equal(t, i, r.Rank)
	}
}

func TestSearchTruncatesToK(t *testing.T) {
	idx, _ := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2, core.SearchFilter{}, core.MethodCosine)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchFiltersByDocument(t *testing.T) {
	idx, _ := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10, core.SearchFilter{DocumentID: "doc-2"}, core.MethodCosine)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "doc-2", r.Metadata.DocumentID)
	}
	assert.Equal(t, "almost alpha", results[0].Text)
}

func TestSearchEuclideanRescoring(t *testing.T) {
	idx, _ := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0}, 2, core.SearchFilter{}, core.MethodEuclidean)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Exact match has distance zero, so the negated-distance score is zero
	// and everything else scores below it.
	assert.Equal(t, "almost alpha", results[0].Text)
	assert.InDelta(t, 0.0, float64(results[0].Score), 1e-5)
	assert.Less(t, results[1].Score, results[0].Score)
}

func TestSearchDotRescoring(t *testing.T) {
	idx, _ := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{2, 0, 0}, 2, core.SearchFilter{}, core.MethodDot)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Text)
	assert.InDelta(t, 2.0, float64(results[0].Score), 1e-5)
}

func TestDeleteByDocument(t *testing.T) {
	idx, _ := seedIndex(t)

	require.NoError(t, idx.DeleteByDocument(context.Background(), "doc-1"))
	assert.Equal(t, 2, idx.Len())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10, core.SearchFilter{}, core.MethodCosine)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "doc-2", r.Metadata.DocumentID)
	}

	// Deleting the same document again is a no-op.
	require.NoError(t, idx.DeleteByDocument(context.Background(), "doc-1"))
	assert.Equal(t, 2, idx.Len())
}

func TestFetchText(t *testing.T) {
	idx, ids := seedIndex(t)

	text, err := idx.FetchText(context.Background(), ids[2])
	require.NoError(t, err)
	assert.Equal(t, "gamma", text)

	_, err = idx.FetchText(context.Background(), "no-such-id")
	assert.Error(t, err)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := New(3)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, core.SearchFilter{}, core.MethodCosine)
	require.NoError(t, err)
	assert.Empty(t, results)
}
