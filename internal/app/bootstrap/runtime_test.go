package bootstrap

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowspark/support-ai-platform/internal/channels"
	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	"github.com/shadowspark/support-ai-platform/internal/notify"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, false))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, false))
}

func TestBuildRedisClientVerifyPing(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: srv.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	defer client.Close()
}

func TestBuildRedisClientVerifyFailureReturnsNil(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestBuildAIGeneratorRequiresAPIKey(t *testing.T) {
	_, err := BuildAIGenerator(context.Background(), &appconfig.Config{}, nil)
	require.Error(t, err)
}

func TestBuildAIGeneratorWithOpenRouterOnly(t *testing.T) {
	cfg := &appconfig.Config{
		OpenRouterAPIKey:  "sk-test",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		OpenRouterModel:   "anthropic/claude-3.5-sonnet",
	}

	gen, err := BuildAIGenerator(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	sender := BuildEmailSender(&appconfig.Config{}, nil, logging.New("error"))
	_, ok := sender.(*notify.StubEmailSender)
	assert.True(t, ok)
}

func TestBuildEmailSenderPrefersSendGrid(t *testing.T) {
	cfg := &appconfig.Config{
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "bot@shadowspark.tech",
	}

	sender := BuildEmailSender(cfg, nil, logging.New("error"))
	_, ok := sender.(*notify.SendGridSender)
	assert.True(t, ok)
}

type noopSender struct{}

func (noopSender) SendReply(context.Context, channels.OutboundReply) error { return nil }

func TestBuildPipelineWiresCollaborators(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	srv := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer redisClient.Close()

	cfg := &appconfig.Config{
		OpenRouterAPIKey: "sk-test",
		OpenRouterModel:  "anthropic/claude-3.5-sonnet",
	}

	p, err := BuildPipeline(context.Background(), cfg, db, redisClient, noopSender{}, nil, nil, logging.New("error"))
	require.NoError(t, err)
	assert.NotNil(t, p.Router)
	assert.NotNil(t, p.Store)
	assert.NotNil(t, p.Escalations)
	assert.NotNil(t, p.Analytics)
	assert.NotNil(t, p.Transcripts)
}

func TestBuildPipelineRequiresDatabase(t *testing.T) {
	_, err := BuildPipeline(context.Background(), &appconfig.Config{OpenRouterAPIKey: "sk-test"}, nil, nil, noopSender{}, nil, nil, nil)
	require.Error(t, err)
}
