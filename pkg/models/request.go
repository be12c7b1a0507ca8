package models

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// NewPromptRequest builds a single-turn user request for model.
func NewPromptRequest(model, prompt string) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: "user", Content: prompt}},
	}
}
