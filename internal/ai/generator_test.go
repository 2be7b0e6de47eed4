package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowspark/support-ai-platform/pkg/retry"
)

type scriptedClient struct {
	responses []Response
	errs      []error
	calls     int
	requests  []Request
}

func (c *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	idx := c.calls
	c.calls++
	c.requests = append(c.requests, req)
	if idx >= len(c.errs) {
		idx = len(c.errs) - 1
	}
	if c.errs[idx] != nil {
		return Response{}, c.errs[idx]
	}
	return c.responses[idx], nil
}

func scripted(resp Response, errs ...error) *scriptedClient {
	if len(errs) == 0 {
		errs = []error{nil}
	}
	responses := make([]Response, len(errs))
	for i := range responses {
		responses[i] = resp
	}
	return &scriptedClient{responses: responses, errs: errs}
}

func TestGeneratePromptAssembly(t *testing.T) {
	client := scripted(Response{Text: "Hello Ada!", Usage: TokenUsage{TotalTokens: 42}})
	gen := NewGenerator(client, "test-model", nil)

	result := gen.Generate(context.Background(), Prompt{
		ConversationID: "conv-1",
		UserName:       "Ada",
		SystemPrompt:   "You are a support bot.",
		Summary:        "User asked about pricing tiers.",
		History: []ChatMessage{
			{Role: ChatRoleUser, Content: "hi"},
			{Role: ChatRoleAssistant, Content: "hello"},
			{Role: ChatRoleUser, Content: "tell me more"},
		},
	})

	require.Equal(t, 1, client.calls)
	req := client.requests[0]

	require.Len(t, req.System, 3)
	assert.Contains(t, req.System[0], "You are a support bot.")
	assert.Contains(t, req.System[0], `The customer's name is "Ada"`)
	assert.Contains(t, req.System[1], "Previous conversation summary: User asked about pricing tiers.")
	assert.Contains(t, req.System[2], "Tone for this reply")
	assert.Len(t, req.Messages, 3)

	assert.Equal(t, "Hello Ada!", result.Response)
	assert.Equal(t, int64(42), result.TokensUsed)
	assert.False(t, result.Fallback)
}

func TestGenerateNoSummaryNoName(t *testing.T) {
	client := scripted(Response{Text: "ok"})
	gen := NewGenerator(client, "test-model", nil)

	gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "hello there"}},
	})

	req := client.requests[0]
	require.Len(t, req.System, 2) // prompt + personality tone
	assert.Equal(t, "prompt", req.System[0])
}

func TestGeneratePersonalityOverrides(t *testing.T) {
	client := scripted(Response{Text: "ok"})
	gen := NewGenerator(client, "test-model", nil)

	gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "how do I deploy the webhook pipeline?"}},
	})

	req := client.requests[0]
	devops := Modes["devops"]
	assert.Equal(t, devops.Temperature, req.Temperature)
	assert.Equal(t, devops.MaxTokens, req.MaxTokens)
}

func TestGenerateSwappablePolicy(t *testing.T) {
	client := scripted(Response{Text: "ok"})
	gen := NewGenerator(client, "test-model", nil,
		WithPersonality(FixedPolicy{Mode: Modes["enterprise"]}))

	gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "how do I deploy?"}},
	})

	req := client.requests[0]
	assert.Equal(t, Modes["enterprise"].Temperature, req.Temperature)
}

func TestGenerateRetriesTransient(t *testing.T) {
	client := scripted(Response{Text: "recovered", Usage: TokenUsage{TotalTokens: 7}},
		&retry.StatusError{StatusCode: 503}, nil)
	gen := NewGenerator(client, "test-model", nil, WithRetry(5, time.Millisecond))

	result := gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})

	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "recovered", result.Response)
	assert.False(t, result.Fallback)
}

func TestGenerateFallbackAfterExhaustion(t *testing.T) {
	client := scripted(Response{}, &retry.StatusError{StatusCode: 500})
	gen := NewGenerator(client, "test-model", nil, WithRetry(2, time.Millisecond))

	result := gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})

	assert.Equal(t, 3, client.calls)
	assert.True(t, result.Fallback)
	assert.Equal(t, FallbackReply, result.Response)
	assert.Zero(t, result.TokensUsed)
}

func TestGenerateFallbackOnPermanentError(t *testing.T) {
	client := scripted(Response{}, &retry.StatusError{StatusCode: 401})
	gen := NewGenerator(client, "test-model", nil, WithRetry(5, time.Millisecond))

	result := gen.Generate(context.Background(), Prompt{
		SystemPrompt: "prompt",
		History:      []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})

	assert.Equal(t, 1, client.calls, "auth failures must not be retried")
	assert.True(t, result.Fallback)
	assert.Equal(t, FallbackReply, result.Response)
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad request", &retry.StatusError{StatusCode: 400}, "bad_request"},
		{"unauthorized", &retry.StatusError{StatusCode: 401}, "auth"},
		{"forbidden", &retry.StatusError{StatusCode: 403}, "auth"},
		{"rate limited", &retry.StatusError{StatusCode: 429}, "rate_limited"},
		{"server", &retry.StatusError{StatusCode: 502}, "upstream_server"},
		{"other http", &retry.StatusError{StatusCode: 404}, "http"},
		{"network", errors.New("dial tcp: econnrefused"), "network"},
		{"unknown", errors.New("weird"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}
