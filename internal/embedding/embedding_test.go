package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/rag-backend/internal/core"
)

// recordingBackend captures the batch sizes it was called with.
type recordingBackend struct {
	name       string
	dim        int
	batchSizes []int
	failAfter  int // fail on the Nth call when > 0
	calls      int
}

func (b *recordingBackend) Name() string   { return b.name }
func (b *recordingBackend) Dimension() int { return b.dim }

func (b *recordingBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.calls++
	if b.failAfter > 0 && b.calls >= b.failAfter {
		return nil, errors.New("quota exceeded")
	}
	b.batchSizes = append(b.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, b.dim)
	}
	return out, nil
}

func TestGenerateUnknownBackend(t *testing.T) {
	g := NewGenerator(0, NewLocalBackend(16))
	_, _, err := g.Generate(context.Background(), []string{"hello"}, "openai")
	assert.ErrorIs(t, err, core.ErrUnknownBackend)
}

func TestGenerateEmptyInput(t *testing.T) {
	g := NewGenerator(0, NewLocalBackend(16))
	vectors, stats, err := g.Generate(context.Background(), nil, "local")
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.True(t, stats.Empty)
	assert.Equal(t, 16, stats.Dimension)
}

func TestGenerateCountAndDimension(t *testing.T) {
	g := NewGenerator(0, NewLocalBackend(32))
	texts := []string{"first text", "second text", "third text"}

	vectors, stats, err := g.Generate(context.Background(), texts, "local")
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, 32)
	}
	assert.Equal(t, len(texts), stats.Count)
	assert.Equal(t, 32, stats.Dimension)
	assert.Equal(t, "local", stats.Backend)
}

func TestGenerateBatching(t *testing.T) {
	backend := &recordingBackend{name: "rec", dim: 8}
	g := NewGenerator(4, backend)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "text"
	}
	_, stats, err := g.Generate(context.Background(), texts, "rec")
	require.NoError(t, err)

	assert.Equal(t, []int{4, 4, 2}, backend.batchSizes)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 10, stats.Count)
}

func TestGenerateBatchFailure(t *testing.T) {
	backend := &recordingBackend{name: "rec", dim: 8, failAfter: 2}
	g := NewGenerator(4, backend)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "text"
	}
	_, _, err := g.Generate(context.Background(), texts, "rec")

	var unavailErr *core.BackendUnavailableError
	require.ErrorAs(t, err, &unavailErr)
	assert.Equal(t, "rec", unavailErr.Backend)
	assert.Equal(t, "embed", unavailErr.Op)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestLocalBackendDeterministic(t *testing.T) {
	b := NewLocalBackend(64)

	first, err := b.Embed(context.Background(), []string{"The quick brown fox"})
	require.NoError(t, err)
	second, err := b.Embed(context.Background(), []string{"The quick brown fox"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocalBackendNormalised(t *testing.T) {
	b := NewLocalBackend(64)
	vectors, err := b.Embed(context.Background(), []string{"some words to hash into buckets"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalBackendEmptyTextZeroVector(t *testing.T) {
	b := NewLocalBackend(8)
	vectors, err := b.Embed(context.Background(), []string{"!!!"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	for _, v := range vectors[0] {
		assert.Zero(t, v)
	}
}
