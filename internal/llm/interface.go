package llm

import "context"

// ChatMessage is one turn of a chat-completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one text-completion call.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float64
	MaxTokens    int
}

// CompletionClient is the contract for text-completion providers. Failures are
// reported as *ProviderError so callers can classify them.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}
