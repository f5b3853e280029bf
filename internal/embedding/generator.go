package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ragstack/rag-backend/internal/core"
)

const defaultBatchSize = 16

// Generator fronts a closed registry of named embedding backends and batches
// calls for throughput instead of issuing one round-trip per text.
type Generator struct {
	backends  map[string]core.EmbeddingBackend
	batchSize int
}

func NewGenerator(batchSize int, backends ...core.EmbeddingBackend) *Generator {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	m := make(map[string]core.EmbeddingBackend, len(backends))
	for _, b := range backends {
		m[b.Name()] = b
	}
	return &Generator{backends: m, batchSize: batchSize}
}

// Backend returns the named backend, or ErrUnknownBackend.
func (g *Generator) Backend(name string) (core.EmbeddingBackend, error) {
	b, ok := g.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownBackend, name)
	}
	return b, nil
}

// Generate embeds texts with the named backend. Empty input returns empty
// output with a diagnostic stats record rather than an error. A failed batch
// fails the whole call with a typed error naming the batch; nothing is
// silently dropped.
func (g *Generator) Generate(ctx context.Context, texts []string, backend string) ([][]float32, core.EmbedStats, error) {
	stats := core.EmbedStats{Backend: backend}

	b, err := g.Backend(backend)
	if err != nil {
		return nil, stats, err
	}
	stats.Dimension = b.Dimension()

	if len(texts) == 0 {
		stats.Empty = true
		return [][]float32{}, stats, nil
	}

	start := time.Now()
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += g.batchSize {
		end := i + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, embedErr := b.Embed(ctx, texts[i:end])
		if embedErr != nil {
			stats.Elapsed = time.Since(start)
			return nil, stats, &core.BackendUnavailableError{
				Op:      "embed",
				Backend: backend,
				Err:     fmt.Errorf("batch %d (%d texts): %w", stats.Batches, end-i, embedErr),
			}
		}
		if len(batch) != end-i {
			stats.Elapsed = time.Since(start)
			return nil, stats, fmt.Errorf("backend %s returned %d vectors for %d texts", backend, len(batch), end-i)
		}
		for _, v := range batch {
			if len(v) != b.Dimension() {
				stats.Elapsed = time.Since(start)
				return nil, stats, &core.ConfigurationError{
					Field:  "embedding dimension",
					Reason: fmt.Sprintf("backend %s declared %d but produced %d", backend, b.Dimension(), len(v)),
				}
			}
		}
		vectors = append(vectors, batch...)
		stats.Batches++
	}

	stats.Count = len(vectors)
	stats.Elapsed = time.Since(start)
	return vectors, stats, nil
}
