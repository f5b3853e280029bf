package core

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ragstack/rag-backend/internal/store"
)

const vectorIDPreviewLen = 5

// IngestResult reports one completed ingestion.
type IngestResult struct {
	DocumentID  string   `json:"document_id"`
	Filename    string   `json:"filename"`
	TotalChunks int      `json:"total_chunks"`
	VectorIDs   []string `json:"vector_ids"` // preview of the generated ids
}

// IngestService runs the write path: chunk the document, embed the chunks,
// upsert the vectors, and record the document's metadata.
type IngestService struct {
	chunker    ChunkingService
	embeddings EmbeddingService
	index      VectorIndex
	metadata   *store.SQLiteStore
	params     ChunkParams
}

func NewIngestService(chunker ChunkingService, embeddings EmbeddingService, index VectorIndex, metadata *store.SQLiteStore, params ChunkParams) *IngestService {
	return &IngestService{
		chunker:    chunker,
		embeddings: embeddings,
		index:      index,
		metadata:   metadata,
		params:     params,
	}
}

// Ingest processes one document under the named chunking method and embedding
// backend. On a partial upsert failure the committed batches are rolled back
// by document id so no orphaned vectors remain.
func (s *IngestService) Ingest(ctx context.Context, filename, text, chunkingMethod, embeddingBackend string) (*IngestResult, error) {
	documentID := uuid.NewString()

	chunks, chunkStats, err := s.chunker.Chunk(ctx, text, chunkingMethod, s.params)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", filename, err)
	}
	if chunkStats.Fallback {
		log.Printf("Chunking %s fell back from %s to %s: %s", filename, chunkingMethod, chunkStats.Method, chunkStats.FallbackReason)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].DocumentID = documentID
		texts[i] = chunks[i].Text
	}

	vectors, embedStats, err := s.embeddings.Generate(ctx, texts, embeddingBackend)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	metas := make([]ChunkMetadata, len(chunks))
	for i, c := range chunks {
		metas[i] = ChunkMetadata{
			DocumentID:     c.DocumentID,
			Filename:       filename,
			ChunkIndex:     c.Index,
			ChunkingMethod: c.Method,
			EmbeddingModel: embedStats.Backend,
		}
	}

	ids, err := s.index.Upsert(ctx, vectors, texts, metas)
	if err != nil {
		// Committed batches would otherwise linger as orphans of a document
		// that was never recorded.
		if len(ids) > 0 {
			if delErr := s.index.DeleteByDocument(ctx, documentID); delErr != nil {
				log.Printf("Failed to roll back %d committed vectors for document %s: %v", len(ids), documentID, delErr)
			}
		}
		return nil, fmt.Errorf("indexing %d chunks for %s: %w", len(chunks), filename, err)
	}

	if err := s.metadata.CreateDocumentMetadata(&store.DocumentMetadata{
		DocumentID:     documentID,
		Filename:       filename,
		ChunkingMethod: chunkStats.Method,
		EmbeddingModel: embedStats.Backend,
		TotalChunks:    len(chunks),
		FileSize:       int64(len(text)),
	}); err != nil {
		return nil, fmt.Errorf("recording metadata for %s: %w", filename, err)
	}

	log.Printf("Ingested %s: %d chunks via %s, embedded with %s in %d batches", filename, len(chunks), chunkStats.Method, embedStats.Backend, embedStats.Batches)

	preview := ids
	if len(preview) > vectorIDPreviewLen {
		preview = preview[:vectorIDPreviewLen]
	}
	return &IngestResult{
		DocumentID:  documentID,
		Filename:    filename,
		TotalChunks: len(chunks),
		VectorIDs:   preview,
	}, nil
}

// DeleteDocument removes a document's vectors and its metadata row. Both
// deletions are idempotent, so deleting an unknown id succeeds.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting vectors for document %s: %w", documentID, err)
	}
	if err := s.metadata.DeleteDocumentMetadata(documentID); err != nil {
		return fmt.Errorf("deleting metadata for document %s: %w", documentID, err)
	}
	return nil
}

// ListDocuments returns the metadata of every ingested document.
func (s *IngestService) ListDocuments() ([]store.DocumentMetadata, error) {
	return s.metadata.ListDocuments()
}
