// Package milvus implements the vector index on a Milvus deployment.
package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/vectorstore"
)

// Field names of the chunk collection.
const (
	FieldID             = "id"
	FieldText           = "text"
	FieldDocumentID     = "document_id"
	FieldFilename       = "filename"
	FieldChunkIndex     = "chunk_index"
	FieldChunkingMethod = "chunking_method"
	FieldEmbeddingModel = "embedding_model"
	FieldVector         = "vector"
)

const (
	DefaultCollection = "rag_chunks"

	upsertBatchSize = 100
	maxTextRunes    = 60000
	maxMetaRunes    = 512
)

// Index is the Milvus-backed vector index. The collection is created lazily
// on first use with the dimensionality the index was constructed with.
type Index struct {
	client     client.Client
	collection string
	dim        int

	initMu      sync.Mutex
	initialized bool
}

// New connects to Milvus. A missing address is a configuration error, not a
// silent no-op; the collection itself is verified on first use.
func New(ctx context.Context, addr, collection string, dimension int) (*Index, error) {
	if addr == "" {
		return nil, &core.ConfigurationError{Field: "MILVUS_ADDR", Reason: "milvus address is required"}
	}
	if dimension <= 0 {
		return nil, &core.ConfigurationError{Field: "dimension", Reason: "must be positive"}
	}
	if collection == "" {
		collection = DefaultCollection
	}

	c, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, &core.BackendUnavailableError{Op: "connect", Backend: "milvus", Err: err}
	}
	return &Index{client: c, collection: collection, dim: dimension}, nil
}

func (idx *Index) Close() error {
	return idx.client.Close()
}

// ensure creates and loads the collection if it does not exist yet. Only
// success is latched: a transient failure here (Milvus restarting, network
// blip) is retried on the next call instead of poisoning the index for the
// process lifetime.
func (idx *Index) ensure(ctx context.Context) error {
	idx.initMu.Lock()
	defer idx.initMu.Unlock()
	if idx.initialized {
		return nil
	}

	exists, err := idx.client.HasCollection(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", idx.collection, err)
	}
	if exists {
		idx.initialized = true
		return nil
	}

	schema := &entity.Schema{
		CollectionName: idx.collection,
		Description:    "Document chunk vectors",
		Fields: []*entity.Field{
			{Name: FieldID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, TypeParams: map[string]string{"max_length": "64"}},
			{Name: FieldText, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "65535"}},
			{Name: FieldDocumentID, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: FieldFilename, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "512"}},
			{Name: FieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: FieldChunkingMethod, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "32"}},
			{Name: FieldEmbeddingModel, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}},
			{Name: FieldVector, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", idx.dim)}},
		},
	}
	if err := idx.client.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("creating collection %s: %w", idx.collection, err)
	}

	hnsw, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	if err != nil {
		return fmt.Errorf("building HNSW index definition: %w", err)
	}
	if err := idx.client.CreateIndex(ctx, idx.collection, FieldVector, hnsw, false); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	if err := idx.client.LoadCollection(ctx, idx.collection, false); err != nil {
		return fmt.Errorf("loading collection %s: %w", idx.collection, err)
	}
	log.Printf("Created and loaded Milvus collection %s (dim=%d)", idx.collection, idx.dim)
	idx.initialized = true
	return nil
}

// Upsert writes records in independent batches. A failed batch never corrupts
// previously committed ones; the returned ids cover the committed batches and
// the error reports the failed ones.
func (idx *Index) Upsert(ctx context.Context, vectors [][]float32, texts []string, metas []core.ChunkMetadata) ([]string, error) {
	if len(vectors) != len(texts) || len(vectors) != len(metas) {
		return nil, fmt.Errorf("upsert: %d vectors, %d texts, %d metadata entries", len(vectors), len(texts), len(metas))
	}
	for _, v := range vectors {
		if len(v) != idx.dim {
			return nil, &core.ConfigurationError{
				Field:  "embedding dimension",
				Reason: fmt.Sprintf("index expects %d, got %d", idx.dim, len(v)),
			}
		}
	}
	if err := idx.ensure(ctx); err != nil {
		return nil, &core.BackendUnavailableError{Op: "upsert", Backend: "milvus", Err: err}
	}

	var (
		ids        []string
		failed     []int
		lastFailed error
	)
	for batchStart := 0; batchStart < len(vectors); batchStart += upsertBatchSize {
		end := batchStart + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		n := end - batchStart

		batchIDs := make([]string, n)
		batchTexts := make([]string, n)
		docIDs := make([]string, n)
		filenames := make([]string, n)
		chunkIdx := make([]int64, n)
		methods := make([]string, n)
		models := make([]string, n)
		for i := 0; i < n; i++ {
			batchIDs[i] = uuid.NewString()
			batchTexts[i] = truncateRunes(texts[batchStart+i], maxTextRunes)
			docIDs[i] = metas[batchStart+i].DocumentID
			filenames[i] = truncateRunes(metas[batchStart+i].Filename, maxMetaRunes)
			chunkIdx[i] = int64(metas[batchStart+i].ChunkIndex)
			methods[i] = metas[batchStart+i].ChunkingMethod
			models[i] = metas[batchStart+i].EmbeddingModel
		}

		columns := []entity.Column{
			entity.NewColumnVarChar(FieldID, batchIDs),
			entity.NewColumnVarChar(FieldText, batchTexts),
			entity.NewColumnVarChar(FieldDocumentID, docIDs),
			entity.NewColumnVarChar(FieldFilename, filenames),
			entity.NewColumnInt64(FieldChunkIndex, chunkIdx),
			entity.NewColumnVarChar(FieldChunkingMethod, methods),
			entity.NewColumnVarChar(FieldEmbeddingModel, models),
			entity.NewColumnFloatVector(FieldVector, idx.dim, vectors[batchStart:end]),
		}

		if _, err := idx.client.Insert(ctx, idx.collection, "", columns...); err != nil {
			log.Printf("Milvus upsert batch %d (%d records) failed: %v", batchStart/upsertBatchSize, n, err)
			failed = append(failed, batchStart/upsertBatchSize)
			lastFailed = err
			continue
		}
		ids = append(ids, batchIDs...)
	}

	if len(failed) > 0 {
		return ids, &core.BackendUnavailableError{
			Op:      "upsert",
			Backend: "milvus",
			Err:     fmt.Errorf("%d of %d batches failed (batches %v): %w", len(failed), (len(vectors)+upsertBatchSize-1)/upsertBatchSize, failed, lastFailed),
		}
	}
	return ids, nil
}

// Search runs a native cosine nearest-neighbor query. Non-cosine methods
// re-rank an oversampled cosine candidate set under the target metric; that
// is an approximation, not an exact alternate-metric index.
func (idx *Index) Search(ctx context.Context, vector []float32, k int, filter core.SearchFilter, method string) ([]core.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	if err := idx.ensure(ctx); err != nil {
		return nil, &core.BackendUnavailableError{Op: "search", Backend: "milvus", Err: err}
	}

	fetchK := k
	outputFields := []string{FieldText, FieldDocumentID, FieldFilename, FieldChunkIndex, FieldChunkingMethod, FieldEmbeddingModel}
	if method != core.MethodCosine {
		fetchK = vectorstore.CandidateMultiplier * k
		outputFields = append(outputFields, FieldVector)
	}

	sp, err := entity.NewIndexHNSWSearchParam(100)
	if err != nil {
		return nil, fmt.Errorf("building search parameters: %w", err)
	}

	expr := ""
	if filter.DocumentID != "" {
		expr = fmt.Sprintf("%s == %q", FieldDocumentID, filter.DocumentID)
	}

	res, err := idx.client.Search(
		ctx,
		idx.collection,
		[]string{},
		expr,
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldVector,
		entity.COSINE,
		fetchK,
		sp,
	)
	if err != nil {
		return nil, &core.BackendUnavailableError{Op: "search", Backend: "milvus", Err: err}
	}
	if len(res) == 0 || res[0].ResultCount == 0 {
		return []core.SearchResult{}, nil
	}

	sr := res[0]
	idCol, ok := sr.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", sr.IDs)
	}

	results := make([]core.SearchResult, 0, sr.ResultCount)
	vectors := make([][]float32, 0, sr.ResultCount)
	var vecCol *entity.ColumnFloatVector
	if method != core.MethodCosine {
		vecCol, _ = sr.Fields.GetColumn(FieldVector).(*entity.ColumnFloatVector)
	}

	for i := 0; i < sr.ResultCount; i++ {
		r := core.SearchResult{
			ID:   idCol.Data()[i],
			Rank: i,
			Metadata: core.ChunkMetadata{
				DocumentID:     varcharAt(sr.Fields, FieldDocumentID, i),
				Filename:       varcharAt(sr.Fields, FieldFilename, i),
				ChunkIndex:     int(int64At(sr.Fields, FieldChunkIndex, i)),
				ChunkingMethod: varcharAt(sr.Fields, FieldChunkingMethod, i),
				EmbeddingModel: varcharAt(sr.Fields, FieldEmbeddingModel, i),
			},
			Text: varcharAt(sr.Fields, FieldText, i),
		}
		if i < len(sr.Scores) {
			r.Score = sr.Scores[i]
		}
		results = append(results, r)
		if vecCol != nil && i < len(vecCol.Data()) {
			vectors = append(vectors, vecCol.Data()[i])
		}
	}

	if method == core.MethodCosine {
		return results, nil
	}
	return vectorstore.Rescore(vector, results, vectors, method, k)
}

// DeleteByDocument removes every record owned by the document id. Deleting an
// already-absent document is a no-op.
func (idx *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := idx.ensure(ctx); err != nil {
		return &core.BackendUnavailableError{Op: "delete", Backend: "milvus", Err: err}
	}
	expr := fmt.Sprintf("%s == %q", FieldDocumentID, documentID)
	if err := idx.client.Delete(ctx, idx.collection, "", expr); err != nil {
		return &core.BackendUnavailableError{Op: "delete", Backend: "milvus", Err: err}
	}
	return nil
}

// FetchText returns the full stored text of one record by id.
func (idx *Index) FetchText(ctx context.Context, id string) (string, error) {
	if err := idx.ensure(ctx); err != nil {
		return "", &core.BackendUnavailableError{Op: "query", Backend: "milvus", Err: err}
	}
	expr := fmt.Sprintf("%s == %q", FieldID, id)
	rs, err := idx.client.Query(ctx, idx.collection, []string{}, expr, []string{FieldText})
	if err != nil {
		return "", &core.BackendUnavailableError{Op: "query", Backend: "milvus", Err: err}
	}
	col, ok := rs.GetColumn(FieldText).(*entity.ColumnVarChar)
	if !ok || len(col.Data()) == 0 {
		return "", fmt.Errorf("vector record %s not found", id)
	}
	return col.Data()[0], nil
}

func varcharAt(fields client.ResultSet, name string, i int) string {
	col, ok := fields.GetColumn(name).(*entity.ColumnVarChar)
	if !ok || i >= len(col.Data()) {
		return ""
	}
	return col.Data()[i]
}

func int64At(fields client.ResultSet, name string, i int) int64 {
	col, ok := fields.GetColumn(name).(*entity.ColumnInt64)
	if !ok || i >= len(col.Data()) {
		return 0
	}
	return col.Data()[i]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
