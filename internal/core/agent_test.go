package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/rag-backend/internal/core"
	"github.com/ragstack/rag-backend/internal/memory"
	vectormem "github.com/ragstack/rag-backend/internal/vectorstore/memory"
)

// stubEmbedder maps exact texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return 4 }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

// stubGenerator records what it was asked and returns a canned reply.
type stubGenerator struct {
	reply       string
	err         error
	lastPrompt  string
	lastHistory []core.ConversationTurn
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, history []core.ConversationTurn) (string, error) {
	g.lastPrompt = prompt
	g.lastHistory = history
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func seedAgent(t *testing.T) (*core.AgentService, *stubGenerator, *memory.Cache) {
	t.Helper()

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Cats purr when content.":  {1, 0, 0, 0},
		"Stocks fell on Tuesday.":  {0, 1, 0, 0},
		"Rain is forecast today.":  {0, 0, 1, 0},
		"Why do cats purr?":        {0.95, 0.05, 0, 0},
		"What happened to stocks?": {0.05, 0.95, 0, 0},
	}}

	index, err := vectormem.New(4)
	require.NoError(t, err)

	texts := []string{"Cats purr when content.", "Stocks fell on Tuesday.", "Rain is forecast today."}
	vectors := make([][]float32, len(texts))
	metas := make([]core.ChunkMetadata, len(texts))
	for i, text := range texts {
		vectors[i] = embedder.vectors[text]
		metas[i] = core.ChunkMetadata{DocumentID: "doc-1", Filename: "facts.md", ChunkIndex: i}
	}
	_, err = index.Upsert(context.Background(), vectors, texts, metas)
	require.NoError(t, err)

	sessions := memory.NewCache(nil, time.Hour, 50)
	generator := &stubGenerator{reply: "Cats purr to self-soothe."}
	return core.NewAgentService(embedder, index, sessions, generator, 2), generator, sessions
}

func TestAnswerRetrievesRelevantChunks(t *testing.T) {
	agent, generator, _ := seedAgent(t)

	answer, err := agent.Answer(context.Background(), "Why do cats purr?", "")
	require.NoError(t, err)

	assert.Equal(t, "Cats purr to self-soothe.", answer.Response)
	assert.NotEmpty(t, answer.SessionID)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Cats purr when content.", answer.Sources[0].Text)
	assert.Equal(t, "facts.md", answer.Sources[0].Filename)
	assert.Greater(t, answer.Sources[0].Score, answer.Sources[1].Score)

	assert.Contains(t, generator.lastPrompt, "Cats purr when content.")
	assert.Contains(t, generator.lastPrompt, "Why do cats purr?")
}

func TestAnswerRecordsConversationHistory(t *testing.T) {
	agent, generator, sessions := seedAgent(t)
	ctx := context.Background()

	first, err := agent.Answer(ctx, "Why do cats purr?", "")
	require.NoError(t, err)

	turns, err := sessions.History(ctx, first.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "Why do cats purr?", turns[0].Content)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)

	// The second turn of the same session sees the recorded history.
	second, err := agent.Answer(ctx, "What happened to stocks?", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, generator.lastHistory, 2)
	assert.Equal(t, "Why do cats purr?", generator.lastHistory[0].Content)
}

func TestAnswerEmptyQuery(t *testing.T) {
	agent, _, _ := seedAgent(t)

	for _, query := range []string{"", "   "} {
		_, err := agent.Answer(context.Background(), query, "")
		assert.ErrorIs(t, err, core.ErrEmptyInput)
	}
}

func TestAnswerEmbedderFailure(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding api down")}
	index, err := vectormem.New(4)
	require.NoError(t, err)

	agent := core.NewAgentService(embedder, index, memory.NewCache(nil, time.Hour, 50), &stubGenerator{}, 2)
	_, err = agent.Answer(context.Background(), "anything", "")

	var unavailErr *core.BackendUnavailableError
	require.ErrorAs(t, err, &unavailErr)
	assert.Equal(t, "stub", unavailErr.Backend)
}

func TestAnswerGeneratorFailure(t *testing.T) {
	agent, generator, sessions := seedAgent(t)
	generator.err = errors.New("model overloaded")

	_, err := agent.Answer(context.Background(), "Why do cats purr?", "s1")

	var unavailErr *core.BackendUnavailableError
	require.ErrorAs(t, err, &unavailErr)

	// A failed generation records no turns.
	turns, histErr := sessions.History(context.Background(), "s1")
	require.NoError(t, histErr)
	assert.Empty(t, turns)
}

func TestClearSession(t *testing.T) {
	agent, _, sessions := seedAgent(t)
	ctx := context.Background()

	answer, err := agent.Answer(ctx, "Why do cats purr?", "")
	require.NoError(t, err)

	require.NoError(t, agent.ClearSession(ctx, answer.SessionID))
	turns, err := sessions.History(ctx, answer.SessionID)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
