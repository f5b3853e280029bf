package chunking

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ragstack/rag-backend/internal/core"
)

const (
	defaultChunkSize           = 1000
	defaultOverlap             = 200
	defaultSimilarityThreshold = 0.7
	defaultMaxTokens           = 512
	defaultTokenOverlap        = 50
)

// Engine splits raw text into ordered chunks under a selectable strategy.
// The embedder powers semantic chunking; the codec powers token-bounded
// chunking. Either may be nil, disabling the corresponding strategy (semantic
// then falls back to recursive, custom fails with a configuration error).
type Engine struct {
	embedder core.EmbeddingBackend
	codec    TokenCodec
}

func NewEngine(embedder core.EmbeddingBackend, codec TokenCodec) *Engine {
	return &Engine{embedder: embedder, codec: codec}
}

// Chunk dispatches to the named strategy. Blank text fails with ErrEmptyInput
// and an unrecognized strategy with ErrUnknownStrategy. The returned stats are
// advisory and never affect control flow.
func (e *Engine) Chunk(ctx context.Context, text, strategy string, params core.ChunkParams) ([]core.Chunk, core.ChunkStats, error) {
	applyDefaults(&params)
	stats := core.ChunkStats{Method: strategy, Params: params}

	if strings.TrimSpace(text) == "" {
		return nil, stats, fmt.Errorf("chunking: %w", core.ErrEmptyInput)
	}

	start := time.Now()
	var (
		texts []string
		err   error
	)
	switch strategy {
	case core.StrategyRecursive:
		texts = chunkRecursive(text, params.ChunkSize, params.Overlap)
	case core.StrategySemantic:
		texts, err = e.chunkSemantic(ctx, text, params)
		if err != nil {
			// Recoverable: the embedding backend is down, not the request.
			stats.Fallback = true
			stats.FallbackReason = err.Error()
			stats.Method = core.StrategyRecursive
			texts = chunkRecursive(text, params.ChunkSize, params.Overlap)
		}
	case core.StrategyCustom:
		if e.codec == nil {
			return nil, stats, &core.ConfigurationError{Field: "token codec", Reason: "custom chunking requires a token codec"}
		}
		texts = chunkTokens(e.codec, text, params.MaxTokens, params.TokenOverlap)
	default:
		return nil, stats, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, strategy)
	}

	chunks := make([]core.Chunk, len(texts))
	totalSize := 0
	for i, t := range texts {
		chunks[i] = core.Chunk{Index: i, Text: t, Method: stats.Method}
		totalSize += utf8.RuneCountInString(t)
	}

	stats.Count = len(chunks)
	if len(chunks) > 0 {
		stats.MeanChunkSize = float64(totalSize) / float64(len(chunks))
	}
	stats.Elapsed = time.Since(start)
	return chunks, stats, nil
}

// applyDefaults fills unset fields and clamps values that would break the
// window arithmetic (overlap must stay below the window size).
func applyDefaults(p *core.ChunkParams) {
	if p.ChunkSize <= 0 {
		p.ChunkSize = defaultChunkSize
	}
	if p.Overlap < 0 {
		p.Overlap = defaultOverlap
	}
	if p.Overlap >= p.ChunkSize {
		p.Overlap = p.ChunkSize / 5
	}
	if p.SimilarityThreshold <= 0 {
		p.SimilarityThreshold = defaultSimilarityThreshold
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}
	if p.TokenOverlap < 0 {
		p.TokenOverlap = defaultTokenOverlap
	}
	if p.TokenOverlap >= p.MaxTokens {
		p.TokenOverlap = p.MaxTokens / 8
	}
}
