// Package providertest holds upstream response fixtures for tests that stand
// up a fake chat completion endpoint.
package providertest

import (
	"encoding/json"
	"net/http"

	"github.com/pario-ai/inserter/pkg/models"
)

// ChatCompletionResponse is an OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int                `json:"index"`
	Message      models.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

// Usage represents token usage from an upstream response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion returns a single-choice assistant response carrying content.
func Completion(content string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  "deepseek-chat",
		Choices: []Choice{
			{Index: 0, Message: models.ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
		Usage: &Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
}

// WriteCompletion writes Completion(content) as the JSON response body.
func WriteCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Completion(content))
}
