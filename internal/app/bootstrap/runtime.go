package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/shadowspark/support-ai-platform/internal/ai"
	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	"github.com/shadowspark/support-ai-platform/internal/notify"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildAIGenerator wires the reply generator: OpenRouter primary, with
// an optional Gemini fallback when GEMINI_API_KEY is set.
func BuildAIGenerator(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*ai.Generator, error) {
	if cfg == nil || strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		return nil, fmt.Errorf("bootstrap: OPENROUTER_API_KEY is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var client ai.Client = ai.NewOpenRouterClient(
		cfg.OpenRouterBaseURL,
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterModel,
		cfg.OpenRouterReferer,
		cfg.OpenRouterTitle,
	)

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			client = ai.NewFallbackClient(client, gemini, logger)
			logger.Info("gemini fallback enabled", "model", cfg.GeminiModel)
		}
	}

	return ai.NewGenerator(client, cfg.OpenRouterModel, logger), nil
}

// BuildEmailSender picks the first configured email backend: SendGrid,
// then SES, then a logging stub.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			logger.Info("sendgrid email sender initialized")
			return sender
		}
	}

	from := cfg.EscalationAlertFrom
	if from == "" {
		from = cfg.SendGridFromEmail
	}
	if sesClient != nil && from != "" {
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: from,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			logger.Info("ses email sender initialized")
			return sender
		}
	}

	logger.Warn("email alerts disabled, using stub sender")
	return notify.NewStubEmailSender(logger)
}
