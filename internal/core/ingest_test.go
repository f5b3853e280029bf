package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/rag-backend/internal/chunking"
	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/embedding"
	"github.com/ragstack/rag-backend/internal/store"
	vectormem "github.com/ragstack/rag-backend/internal/vectorstore/memory"
)

func newIngestFixture(t *testing.T, embedder core.EmbeddingBackend) (*core.IngestService, *vectormem.Index, *store.SQLiteStore) {
	t.Helper()

	index, err := vectormem.New(embedder.Dimension())
	require.NoError(t, err)

	metadata, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	chunker := chunking.NewEngine(embedder, nil)
	embeddings := embedding.NewGenerator(0, embedder)
	params := core.DefaultChunkParams()
	return core.NewIngestService(chunker, embeddings, index, metadata, params), index, metadata
}

func TestIngestSemanticEndToEnd(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Cats purr.":   {1, 0, 0, 0},
		"Stocks fell.": {0, 1, 0, 0},
		"Rain came.":   {0, 0, 1, 0},
	}}
	svc, index, metadata := newIngestFixture(t, embedder)

	result, err := svc.Ingest(context.Background(), "facts.md", "Cats purr. Stocks fell. Rain came.", core.StrategySemantic, "stub")
	require.NoError(t, err)

	// Orthogonal sentence embeddings never merge, so one chunk per sentence.
	assert.Equal(t, 3, result.TotalChunks)
	assert.Equal(t, 3, index.Len())
	assert.NotEmpty(t, result.DocumentID)
	assert.NotEmpty(t, result.VectorIDs)

	doc, err := metadata.GetDocumentMetadata(result.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "facts.md", doc.Filename)
	assert.Equal(t, core.StrategySemantic, doc.ChunkingMethod)
	assert.Equal(t, "stub", doc.EmbeddingModel)
	assert.Equal(t, 3, doc.TotalChunks)

	// The stored chunks are retrievable by similarity.
	results, err := index.Search(context.Background(), []float32{0, 1, 0, 0}, 1, core.SearchFilter{}, core.MethodCosine)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Stocks fell.", results[0].Text)
	assert.Equal(t, result.DocumentID, results[0].Metadata.DocumentID)
}

func TestIngestEmptyText(t *testing.T) {
	svc, _, _ := newIngestFixture(t, &stubEmbedder{})

	_, err := svc.Ingest(context.Background(), "empty.md", "   ", core.StrategyRecursive, "stub")
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestIngestUnknownStrategy(t *testing.T) {
	svc, _, _ := newIngestFixture(t, &stubEmbedder{})

	_, err := svc.Ingest(context.Background(), "a.md", "some text", "sliding", "stub")
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)
}

func TestIngestUnknownBackendLeavesNothingBehind(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	svc, index, metadata := newIngestFixture(t, embedder)

	_, err := svc.Ingest(context.Background(), "a.md", "some text", core.StrategyRecursive, "openai")
	require.ErrorIs(t, err, core.ErrUnknownBackend)

	assert.Equal(t, 0, index.Len())
	docs, err := metadata.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestEmbedFailureLeavesNothingBehind(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding api down")}
	svc, index, metadata := newIngestFixture(t, embedder)

	_, err := svc.Ingest(context.Background(), "a.md", "some text", core.StrategyRecursive, "stub")

	var unavailErr *core.BackendUnavailableError
	require.ErrorAs(t, err, &unavailErr)
	assert.Equal(t, 0, index.Len())
	docs, listErr := metadata.ListDocuments()
	require.NoError(t, listErr)
	assert.Empty(t, docs)
}

// flakyIndex returns canned upsert results and records deletions.
type flakyIndex struct {
	committedIDs []string
	upsertErr    error
	lastMetas    []core.ChunkMetadata
	deleted      []string
}

func (f *flakyIndex) Upsert(_ context.Context, _ [][]float32, _ []string, metas []core.ChunkMetadata) ([]string, error) {
	f.lastMetas = metas
	return f.committedIDs, f.upsertErr
}

func (f *flakyIndex) Search(context.Context, []float32, int, core.SearchFilter, string) ([]core.SearchResult, error) {
	return nil, nil
}

func (f *flakyIndex) DeleteByDocument(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *flakyIndex) FetchText(context.Context, string) (string, error) {
	return "", nil
}

func TestIngestPartialUpsertRollsBack(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"some text": {1, 0, 0, 0},
	}}
	index := &flakyIndex{
		committedIDs: []string{"v1"},
		upsertErr:    &core.BackendUnavailableError{Op: "upsert", Backend: "milvus", Err: errors.New("batch 1 failed")},
	}
	metadata, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	chunker := chunking.NewEngine(embedder, nil)
	embeddings := embedding.NewGenerator(0, embedder)
	svc := core.NewIngestService(chunker, embeddings, index, metadata, core.DefaultChunkParams())

	_, err = svc.Ingest(context.Background(), "a.md", "some text", core.StrategyRecursive, "stub")

	var unavailErr *core.BackendUnavailableError
	require.ErrorAs(t, err, &unavailErr)

	// Every chunk was attributed to the new document before indexing, and the
	// committed batch was rolled back under that id.
	require.NotEmpty(t, index.lastMetas)
	documentID := index.lastMetas[0].DocumentID
	assert.NotEmpty(t, documentID)
	assert.Equal(t, []string{documentID}, index.deleted)

	// No metadata row survives a failed ingestion.
	docs, err := metadata.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestFullUpsertFailureSkipsRollback(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"some text": {1, 0, 0, 0},
	}}
	index := &flakyIndex{
		upsertErr: &core.BackendUnavailableError{Op: "upsert", Backend: "milvus", Err: errors.New("unreachable")},
	}
	metadata, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	chunker := chunking.NewEngine(embedder, nil)
	embeddings := embedding.NewGenerator(0, embedder)
	svc := core.NewIngestService(chunker, embeddings, index, metadata, core.DefaultChunkParams())

	_, err = svc.Ingest(context.Background(), "a.md", "some text", core.StrategyRecursive, "stub")
	require.Error(t, err)

	// Nothing committed, so there is nothing to delete.
	assert.Empty(t, index.deleted)
}

func TestDeleteDocumentRemovesVectorsAndMetadata(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Cats purr.":   {1, 0, 0, 0},
		"Stocks fell.": {0, 1, 0, 0},
	}}
	svc, index, metadata := newIngestFixture(t, embedder)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, "facts.md", "Cats purr. Stocks fell.", core.StrategySemantic, "stub")
	require.NoError(t, err)
	require.Equal(t, 2, index.Len())

	require.NoError(t, svc.DeleteDocument(ctx, result.DocumentID))
	assert.Equal(t, 0, index.Len())

	doc, err := metadata.GetDocumentMetadata(result.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc)

	// Deleting again is a no-op.
	assert.NoError(t, svc.DeleteDocument(ctx, result.DocumentID))
}

func TestIngestSemanticFallbackIsRecordedInMetadata(t *testing.T) {
	// Sentence embedding fails, so the engine falls back to recursive and the
	// recorded chunking method reflects what actually ran. The stub only fails
	// through the engine's embedder; the generator path uses a working one.
	failing := &stubEmbedder{err: errors.New("backend down")}
	working := &stubEmbedder{vectors: map[string][]float32{
		"Cats purr. Stocks fell.": {1, 0, 0, 0},
	}}

	index, err := vectormem.New(4)
	require.NoError(t, err)
	metadata, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { metadata.Close() })

	chunker := chunking.NewEngine(failing, nil)
	embeddings := embedding.NewGenerator(0, working)
	svc := core.NewIngestService(chunker, embeddings, index, metadata, core.DefaultChunkParams())

	result, err := svc.Ingest(context.Background(), "facts.md", "Cats purr. Stocks fell.", core.StrategySemantic, "stub")
	require.NoError(t, err)

	doc, err := metadata.GetDocumentMetadata(result.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, core.StrategyRecursive, doc.ChunkingMethod)
}
