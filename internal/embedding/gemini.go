package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

const (
	geminiEmbeddingModel = "text-embedding-004"
	geminiDimension      = 768
)

// GeminiBackend produces embeddings through the Gemini embedding API. One
// Embed call issues a single batched request for the whole slice.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(client *genai.Client) *GeminiBackend {
	return &GeminiBackend{client: client, model: geminiEmbeddingModel}
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Dimension() int { return geminiDimension }

func (b *GeminiBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := b.client.EmbeddingModel(b.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embedding request failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("no embedding data received from gemini for text %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
