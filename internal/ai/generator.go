package ai

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
	"github.com/shadowspark/support-ai-platform/pkg/retry"
)

var tracer = otel.Tracer("support/ai-generator")

// FallbackReply is sent when every model attempt failed. The customer
// is told how to reach a human instead of seeing an error.
const FallbackReply = "I'm sorry, I'm experiencing a temporary issue. " +
	"Please try again in a moment, or type 'agent' to speak with a human."

// Prompt is everything the generator needs to produce one reply.
type Prompt struct {
	ConversationID string
	ClientID       string
	UserName       string
	SystemPrompt   string
	Summary        string
	// History is the recent window in chronological order, ending with
	// the message being replied to.
	History []ChatMessage
}

// Result is a generated reply. Fallback marks the canned apology.
type Result struct {
	Response   string
	TokensUsed int64
	Fallback   bool
}

// Generator assembles prompts and calls the model with retry. It never
// returns an error: exhausted retries produce the fallback reply.
type Generator struct {
	client      Client
	policy      PersonalityPolicy
	logger      *logging.Logger
	model       string
	maxRetries  int
	retryDelay  time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithPersonality swaps the personality policy.
func WithPersonality(policy PersonalityPolicy) GeneratorOption {
	return func(g *Generator) { g.policy = policy }
}

// WithRetry overrides the retry budget for model calls.
func WithRetry(maxRetries int, baseDelay time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.maxRetries = maxRetries
		g.retryDelay = baseDelay
	}
}

// NewGenerator creates a reply generator.
func NewGenerator(client Client, model string, logger *logging.Logger, opts ...GeneratorOption) *Generator {
	if client == nil {
		panic("ai: generator requires a client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{
		client:     client,
		policy:     KeywordPolicy{},
		logger:     logger,
		model:      model,
		maxRetries: retry.DefaultMaxRetries,
		retryDelay: retry.DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the assistant reply for a conversation turn.
func (g *Generator) Generate(ctx context.Context, prompt Prompt) Result {
	ctx, span := tracer.Start(ctx, "ai.generate")
	defer span.End()

	start := time.Now()

	systemPrompt := prompt.SystemPrompt
	if prompt.UserName != "" {
		systemPrompt += fmt.Sprintf("\n\nThe customer's name is %q. Use their name naturally in conversation.", prompt.UserName)
	}

	system := []string{systemPrompt}
	if prompt.Summary != "" {
		system = append(system, "Previous conversation summary: "+prompt.Summary)
	}

	mode := g.policy.ModeFor(latestUserText(prompt.History))
	if mode.Style != "" {
		system = append(system, fmt.Sprintf(
			"Tone for this reply: %s. Open in the spirit of %q and close in the spirit of %q, adapted to the conversation.",
			mode.Style, mode.Prefix, mode.Suffix))
	}

	req := Request{
		Model:       g.model,
		System:      system,
		Messages:    prompt.History,
		MaxTokens:   mode.MaxTokens,
		Temperature: mode.Temperature,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 500
	}

	span.SetAttributes(
		attribute.String("ai.personality", mode.Name),
		attribute.Int("ai.history_len", len(prompt.History)),
	)

	resp, err := retry.Do(ctx, retry.Options{
		MaxRetries: g.maxRetries,
		BaseDelay:  g.retryDelay,
		Operation:  "llm.complete",
		RequestID:  prompt.ConversationID,
		Logger:     g.logger,
	}, func(ctx context.Context) (Response, error) {
		return g.client.Complete(ctx, req)
	})
	if err != nil {
		g.logger.Error("AI generation failed, sending fallback reply",
			"conversation_id", prompt.ConversationID,
			"client_id", prompt.ClientID,
			"failure_class", classifyFailure(err),
			"error", err)
		return Result{Response: FallbackReply, Fallback: true}
	}

	g.logger.Info("AI response generated",
		"conversation_id", prompt.ConversationID,
		"personality", mode.Name,
		"tokens_used", resp.Usage.TotalTokens,
		"latency_ms", time.Since(start).Milliseconds())

	return Result{Response: resp.Text, TokensUsed: int64(resp.Usage.TotalTokens)}
}

func latestUserText(history []ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ChatRoleUser {
			return history[i].Content
		}
	}
	return ""
}

// classifyFailure buckets a model failure for log analysis. The bucket
// only affects log detail; the customer always gets the same fallback.
func classifyFailure(err error) string {
	switch status := retry.HTTPStatus(err); {
	case status == 400:
		return "bad_request"
	case status == 401 || status == 403:
		return "auth"
	case status == 429:
		return "rate_limited"
	case status >= 500:
		return "upstream_server"
	case status != 0:
		return "http"
	case retry.IsTransient(err):
		return "network"
	default:
		return "unknown"
	}
}
