package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shadowspark/support-ai-platform/pkg/retry"
)

// OpenRouterClient talks to the OpenRouter chat completions API, which
// fronts Anthropic and OpenAI models behind one OpenAI-compatible
// endpoint.
type OpenRouterClient struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

// NewOpenRouterClient creates an OpenRouter-backed LLM client.
func NewOpenRouterClient(baseURL, apiKey, model, siteURL, appName string) *OpenRouterClient {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model       string          `json:"model"`
	Messages    []openRouterMsg `json:"messages"`
	MaxTokens   int32           `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message      openRouterMsg `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to OpenRouter.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.Client == nil {
		return Response{}, errors.New("ai: openrouter http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return Response{}, errors.New("ai: openrouter api key is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(c.Model)
	}
	if model == "" {
		return Response{}, errors.New("ai: openrouter model is required")
	}

	messages := make([]openRouterMsg, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		messages = append(messages, openRouterMsg{Role: ChatRoleSystem, Content: sys})
	}
	for _, m := range req.Messages {
		messages = append(messages, openRouterMsg{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(openRouterChatReq{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return Response{}, fmt.Errorf("ai: marshal openrouter request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("ai: build openrouter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.SiteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		httpReq.Header.Set("X-Title", c.AppName)
	}

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ai: openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return Response{}, &retry.StatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("ai: decode openrouter response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return Response{}, fmt.Errorf("ai: openrouter: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, errors.New("ai: openrouter returned no choices")
	}

	return Response{
		Text:       decoded.Choices[0].Message.Content,
		StopReason: decoded.Choices[0].FinishReason,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}
