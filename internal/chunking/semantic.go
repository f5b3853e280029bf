package chunking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/utils"
)

var sentencePattern = regexp.MustCompile(`(?m)(?U)[^.!?]+[.!?]`)

// chunkSemantic splits text into sentences, embeds each one and greedily
// merges consecutive sentences while the similarity between the current and
// previous sentence embedding exceeds the threshold and the running chunk
// stays under the size cap. An embedding failure is returned to the engine,
// which falls back to recursive chunking instead of failing the request.
func (e *Engine) chunkSemantic(ctx context.Context, text string, params core.ChunkParams) ([]string, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedding backend configured for semantic chunking")
	}

	sentences := splitSentences(text)
	if len(sentences) < 2 {
		return []string{strings.TrimSpace(text)}, nil
	}

	vectors, err := e.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding %d sentences with %s: %w", len(sentences), e.embedder.Name(), err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embedding backend %s returned %d vectors for %d sentences", e.embedder.Name(), len(vectors), len(sentences))
	}

	var chunks []string
	current := []string{sentences[0]}
	currentLen := utf8.RuneCountInString(sentences[0])

	for i := 1; i < len(sentences); i++ {
		similarity, simErr := utils.CosineSimilarity(vectors[i-1], vectors[i])
		next := utf8.RuneCountInString(sentences[i])
		if simErr == nil && float64(similarity) > params.SimilarityThreshold && currentLen+next < params.ChunkSize {
			current = append(current, sentences[i])
			currentLen += next + 1
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = []string{sentences[i]}
		currentLen = next
	}
	chunks = append(chunks, strings.Join(current, " "))
	return chunks, nil
}

// splitSentences breaks text on terminal punctuation, keeping any trailing
// fragment without punctuation as its own sentence.
func splitSentences(text string) []string {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	var sentences []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
