package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultLocalDimension = 256

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// LocalBackend is a deterministic, dependency-free embedding backend: a
// hashed bag-of-words folded into a fixed dimension and L2-normalised. It is
// not a semantic model, but it is stable, never unavailable, and identical
// texts always map to identical vectors, which is what offline operation and
// the test suite need.
type LocalBackend struct {
	dim int
}

func NewLocalBackend(dim int) *LocalBackend {
	if dim <= 0 {
		dim = defaultLocalDimension
	}
	return &LocalBackend{dim: dim}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Dimension() int { return b.dim }

func (b *LocalBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = b.embedOne(t)
	}
	return vectors, nil
}

func (b *LocalBackend) embedOne(text string) []float32 {
	vec := make([]float32, b.dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%b.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}
