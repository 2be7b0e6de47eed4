// Package ai generates assistant replies. A Client abstracts the model
// provider; the Generator layers prompt assembly, personality, retry
// and a hard fallback reply on top so the pipeline never surfaces a
// model failure to the customer.
package ai

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one prompt turn, including system instructions.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports the token spend of one completion.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a provider-neutral completion request.
type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Response is a provider-neutral completion response.
type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client is implemented by each model provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
