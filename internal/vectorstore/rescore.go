// Package vectorstore holds logic shared by the vector index backends.
package vectorstore

import (
	"fmt"
	"sort"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/utils"
)

// CandidateMultiplier is how many cosine candidates are fetched per requested
// result when a non-cosine method re-ranks them.
const CandidateMultiplier = 2

// Rescore remaps cosine candidates onto another similarity method and returns
// the top k. This is an approximation, not an exact alternate-metric index:
// records outside the cosine candidate set are never considered, so a true
// nearest neighbour under the target metric can be missed. Ties keep the
// candidates' original (insertion) order.
func Rescore(query []float32, candidates []core.SearchResult, vectors [][]float32, method string, k int) ([]core.SearchResult, error) {
	if len(candidates) != len(vectors) {
		return nil, fmt.Errorf("rescore: %d candidates with %d vectors", len(candidates), len(vectors))
	}

	rescored := make([]core.SearchResult, len(candidates))
	for i, c := range candidates {
		var (
			score float32
			err   error
		)
		switch method {
		case core.MethodEuclidean:
			score, err = utils.EuclideanScore(query, vectors[i])
		case core.MethodDot:
			score, err = utils.DotProduct(query, vectors[i])
		default:
			return nil, fmt.Errorf("rescore: unsupported method %q", method)
		}
		if err != nil {
			return nil, fmt.Errorf("rescore candidate %s: %w", c.ID, err)
		}
		rescored[i] = c
		rescored[i].Score = score
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})
	if k < len(rescored) {
		rescored = rescored[:k]
	}
	for i := range rescored {
		rescored[i].Rank = i
	}
	return rescored, nil
}
