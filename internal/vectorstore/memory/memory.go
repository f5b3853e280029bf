// Package memory is an in-process vector index with brute-force exact search.
// It backs tests and runs the service without a Milvus deployment; it shares
// the VectorIndex contract with the milvus package.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/utils"
	"github.com/ragstack/rag-backend/internal/vectorstore"
)

type record struct {
	id   string
	vec  []float32
	text string
	meta core.ChunkMetadata
}

type Index struct {
	mu   sync.RWMutex
	dim  int
	recs []record
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, &core.ConfigurationError{Field: "dimension", Reason: "must be positive"}
	}
	return &Index{dim: dimension}, nil
}

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

	idx.mu.Lock()
	defer idx.mu.Unlock()
	ids := make([]string, len(vectors))
	for i := range vectors {
		ids[i] = uuid.NewString()
		idx.recs = append(idx.recs, record{id: ids[i], vec: vectors[i], text: texts[i], meta: metas[i]})
	}
	return ids, nil
}

func (idx *Index) Search(ctx context.Context, vector []float32, k int, filter core.SearchFilter, method string) ([]core.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	fetchK := k
	if method != core.MethodCosine {
		fetchK = vectorstore.CandidateMultiplier * k
	}

	idx.mu.RLock()
	type scored struct {
		res core.SearchResult
		vec []float32
	}
	var candidates []scored
	for _, r := range idx.recs {
		if filter.DocumentID != "" && r.meta.DocumentID != filter.DocumentID {
			continue
		}
		score, err := utils.CosineSimilarity(vector, r.vec)
		if err != nil {
			idx.mu.RUnlock()
			return nil, fmt.Errorf("scoring record %s: %w", r.id, err)
		}
		candidates = append(candidates, scored{
			res: core.SearchResult{ID: r.id, Score: score, Text: r.text, Metadata: r.meta},
			vec: r.vec,
		})
	}
	idx.mu.RUnlock()

	// Stable sort keeps insertion order on score ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].res.Score > candidates[j].res.Score
	})
	if fetchK < len(candidates) {
		candidates = candidates[:fetchK]
	}

	results := make([]core.SearchResult, len(candidates))
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		results[i] = c.res
		results[i].Rank = i
		vectors[i] = c.vec
	}

	if method == core.MethodCosine {
		if k < len(results) {
			results = results[:k]
		}
		return results, nil
	}
	return vectorstore.Rescore(vector, results, vectors, method, k)
}

// DeleteByDocument removes every record owned by the document. Deleting an
// absent document id is a no-op.
func (idx *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	kept := idx.recs[:0]
	for _, r := range idx.recs {
		if r.meta.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	idx.recs = kept
	return nil
}

func (idx *Index) FetchText(ctx context.Context, id string) (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, r := range idx.recs {
		if r.id == id {
			return r.text, nil
		}
	}
	return "", fmt.Errorf("vector record %s not found", id)
}

// Len reports the number of stored records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.recs)
}
