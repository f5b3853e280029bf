package core

import (
	"context"
	"time"
)

// Chunking strategy names accepted by the chunking engine. These are wire
// names: they appear in upload requests and in stored vector metadata.
const (
	StrategyRecursive = "recursive"
	StrategySemantic  = "semantic"
	StrategyCustom    = "custom"
)

// Similarity methods accepted by VectorIndex.Search. Only cosine is a native
// index query; the others are rescoring approximations over cosine candidates.
const (
	MethodCosine    = "cosine"
	MethodEuclidean = "euclidean"
	MethodDot       = "dot"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chunk is an ordered fragment of a document's text, the unit of embedding
// and retrieval.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Method     string `json:"method"`
}

// ChunkParams carries the effective parameters of one chunking pass. Unset
// sizes are replaced with engine defaults; an overlap of zero is respected.
type ChunkParams struct {
	ChunkSize           int     `json:"chunk_size"`
	Overlap             int     `json:"overlap"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxTokens           int     `json:"max_tokens"`
	TokenOverlap        int     `json:"token_overlap"`
}

// DefaultChunkParams mirrors the documented defaults of each strategy.
func DefaultChunkParams() ChunkParams {
	return ChunkParams{
		ChunkSize:           1000,
		Overlap:             200,
		SimilarityThreshold: 0.7,
		MaxTokens:           512,
		TokenOverlap:        50,
	}
}

// ChunkStats is the advisory metrics record returned by every chunking call.
// It never affects control flow.
type ChunkStats struct {
	Method         string        `json:"method"`
	Count          int           `json:"count"`
	MeanChunkSize  float64       `json:"mean_chunk_size"`
	Elapsed        time.Duration `json:"elapsed"`
	Params         ChunkParams   `json:"params"`
	Fallback       bool          `json:"fallback"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
}

// EmbedStats is the metrics record returned by every embedding call.
type EmbedStats struct {
	Backend   string        `json:"backend"`
	Dimension int           `json:"dimension"`
	Count     int           `json:"count"`
	Batches   int           `json:"batches"`
	Elapsed   time.Duration `json:"elapsed"`
	Empty     bool          `json:"empty"`
}

// ChunkMetadata is the provenance stored alongside every vector record.
type ChunkMetadata struct {
	DocumentID     string `json:"document_id"`
	Filename       string `json:"filename"`
	ChunkIndex     int    `json:"chunk_index"`
	ChunkingMethod string `json:"chunking_method"`
	EmbeddingModel string `json:"embedding_model"`
}

// SearchResult is a ranked match from the vector index. Scores are comparable
// only within a single search call; their scale depends on the method.
type SearchResult struct {
	ID       string        `json:"id"`
	Score    float32       `json:"score"`
	Rank     int           `json:"rank"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SearchFilter restricts a search to records matching its non-zero fields.
type SearchFilter struct {
	DocumentID string
}

// ConversationTurn is a single message in a session's history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmbeddingBackend turns text into fixed-length vectors. Dimension must be
// stable for the lifetime of the backend; mixing vectors of different
// dimensionality inside one index is a configuration error.
type EmbeddingBackend interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingService is the batching front over the named backends.
type EmbeddingService interface {
	Generate(ctx context.Context, texts []string, backend string) ([][]float32, EmbedStats, error)
}

// ChunkingService splits raw text under a named strategy.
type ChunkingService interface {
	Chunk(ctx context.Context, text, strategy string, params ChunkParams) ([]Chunk, ChunkStats, error)
}

// VectorIndex is a durable nearest-neighbor store over embedding vectors with
// provenance-scoped deletion.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors [][]float32, texts []string, metas []ChunkMetadata) ([]string, error)
	Search(ctx context.Context, vector []float32, k int, filter SearchFilter, method string) ([]SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	FetchText(ctx context.Context, id string) (string, error)
}

// SessionStore keeps bounded, time-limited per-session conversation history.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, turn ConversationTurn) error
	History(ctx context.Context, sessionID string) ([]ConversationTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

// TextGenerator is the opaque text-completion capability the orchestrator
// conditions on retrieved context. The orchestrator only depends on this
// contract, not on which model serves it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, history []ConversationTurn) (string, error)
}
