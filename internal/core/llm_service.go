package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const (
	defaultChatModelName = "gemini-1.5-flash-latest"

	chatSystemInstruction = "You are a helpful assistant. Answer questions based on the provided document context. " +
		"If the answer is not found in the provided context, clearly state that you don't have the information. " +
		"Keep your answers concise and directly related to the user's question and provided context. " +
		"Do not make up information. If the context is insufficient, say so."
)

// LLMService implements TextGenerator over the Gemini API. The client is
// constructed once at process start and injected.
type LLMService struct {
	client *genai.Client
	model  string
}

func NewLLMService(client *genai.Client) *LLMService {
	return &LLMService{client: client, model: defaultChatModelName}
}

// Generate sends the prompt as the final user turn of a chat conditioned on
// the prior conversation history.
func (s *LLMService) Generate(ctx context.Context, prompt string, history []ConversationTurn) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is empty for chat completion")
	}

	model := s.client.GenerativeModel(s.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	chatSession := model.StartChat()
	for _, turn := range history {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		chatSession.History = append(chatSession.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := chatSession.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Println("Gemini response was empty or had no valid candidates/parts.")
		return "I'm sorry, I couldn't generate a response at this time. Please try again.", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if responseText.Len() == 0 {
		log.Println("Gemini response part was not text or was empty after processing.")
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}

	return responseText.String(), nil
}
