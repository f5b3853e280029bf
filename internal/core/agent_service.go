package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultTopK        = 5
	sourcePreviewRunes = 500
)

// Source identifies one retrieved chunk that grounded an answer.
type Source struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

// Answer is the orchestrator's response payload.
type Answer struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	Sources   []Source `json:"sources"`
}

// AgentService is the retrieval orchestrator: it embeds the query, searches
// the vector index, conditions the text generator on the retrieved context and
// the session history, and records both turns in the session cache.
type AgentService struct {
	embedder  EmbeddingBackend
	index     VectorIndex
	sessions  SessionStore
	generator TextGenerator
	topK      int
}

func NewAgentService(embedder EmbeddingBackend, index VectorIndex, sessions SessionStore, generator TextGenerator, topK int) *AgentService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &AgentService{
		embedder:  embedder,
		index:     index,
		sessions:  sessions,
		generator: generator,
		topK:      topK,
	}
}

// Answer runs one retrieval-augmented generation pipeline. A missing session
// id gets a fresh one; the vector index is the only collaborator whose
// failure fails the call, since no safe fallback exists for it.
func (s *AgentService) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query: %w", ErrEmptyInput)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &BackendUnavailableError{Op: "embed query", Backend: s.embedder.Name(), Err: err}
	}
	if len(queryVectors) != 1 {
		return nil, fmt.Errorf("backend %s returned %d vectors for one query", s.embedder.Name(), len(queryVectors))
	}

	results, err := s.index.Search(ctx, queryVectors[0], s.topK, SearchFilter{}, MethodCosine)
	if err != nil {
		return nil, fmt.Errorf("vector search (k=%d): %w", s.topK, err)
	}

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		// The cache degrades internally; an error here is unexpected but
		// never worth failing the query over.
		log.Printf("Failed to load history for session %s, proceeding without it: %v", sessionID, err)
		history = nil
	}

	prompt := buildPrompt(query, results)
	response, err := s.generator.Generate(ctx, prompt, history)
	if err != nil {
		return nil, &BackendUnavailableError{Op: "generate", Backend: "llm", Err: err}
	}

	if err := s.sessions.Append(ctx, sessionID, ConversationTurn{Role: RoleUser, Content: query}); err != nil {
		log.Printf("Failed to record user turn for session %s: %v", sessionID, err)
	}
	if err := s.sessions.Append(ctx, sessionID, ConversationTurn{Role: RoleAssistant, Content: response}); err != nil {
		log.Printf("Failed to record assistant turn for session %s: %v", sessionID, err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			ID:         r.ID,
			Filename:   r.Metadata.Filename,
			ChunkIndex: r.Metadata.ChunkIndex,
			Score:      r.Score,
			Text:       previewText(r.Text),
		})
	}

	return &Answer{Response: response, SessionID: sessionID, Sources: sources}, nil
}

// ClearSession drops a session's history.
func (s *AgentService) ClearSession(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

func buildPrompt(query string, results []SearchResult) string {
	var contextBuilder strings.Builder
	for _, r := range results {
		contextBuilder.WriteString(r.Text)
		contextBuilder.WriteString("\n\n")
	}
	retrieved := strings.TrimSpace(contextBuilder.String())

	if retrieved == "" {
		return fmt.Sprintf("Based on our previous conversation (if any), and noting that I couldn't find relevant documents for your current question, please answer: %s", query)
	}
	return fmt.Sprintf("Based on our previous conversation and the following potentially relevant context from uploaded documents:\n\n--- CONTEXT START ---\n%s\n--- CONTEXT END ---\n\nNow, please answer my question: %s", retrieved, query)
}

func previewText(s string) string {
	runes := []rune(s)
	if len(runes) <= sourcePreviewRunes {
		return s
	}
	return string(runes[:sourcePreviewRunes]) + "..."
}
