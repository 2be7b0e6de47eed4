package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shadowspark/support-ai-platform/internal/analytics"
	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	"github.com/shadowspark/support-ai-platform/internal/conversation"
	"github.com/shadowspark/support-ai-platform/internal/escalation"
	"github.com/shadowspark/support-ai-platform/internal/observability/metrics"
	"github.com/shadowspark/support-ai-platform/internal/tenant"
	"github.com/shadowspark/support-ai-platform/internal/transcript"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// Pipeline bundles the message pipeline with the stores the HTTP layer
// also needs, so both binaries wire once and share the result.
type Pipeline struct {
	Router      *conversation.Router
	Store       *conversation.Store
	Escalations *escalation.Store
	Analytics   *analytics.Recorder
	Transcripts *transcript.Store
}

// BuildPipeline wires the full message pipeline against one database
// handle. notifier may be nil; redisClient may be nil to disable live
// transcripts.
func BuildPipeline(
	ctx context.Context,
	cfg *appconfig.Config,
	db *sql.DB,
	redisClient *redis.Client,
	sender conversation.ReplySender,
	notifier escalation.Notifier,
	m *metrics.PipelineMetrics,
	logger *logging.Logger,
) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: pipeline requires config")
	}
	if db == nil {
		return nil, fmt.Errorf("bootstrap: pipeline requires a database")
	}
	if logger == nil {
		logger = logging.Default()
	}

	generator, err := BuildAIGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	convStore := conversation.NewStore(db)
	escalations := escalation.NewStore(db, logger, notifier)
	recorder := analytics.NewRecorder(db, logger)
	transcripts := transcript.NewStore(redisClient)

	opts := []conversation.RouterOption{
		conversation.WithAnalytics(recorder),
	}
	if transcripts != nil {
		opts = append(opts, conversation.WithTranscript(transcripts))
	}
	if m != nil {
		opts = append(opts, conversation.WithMetrics(m))
	}

	router := conversation.NewRouter(
		convStore,
		tenant.NewStore(db),
		tenant.NewGuard(db, logger),
		generator,
		escalations,
		sender,
		logger,
		opts...,
	)

	return &Pipeline{
		Router:      router,
		Store:       convStore,
		Escalations: escalations,
		Analytics:   recorder,
		Transcripts: transcripts,
	}, nil
}
