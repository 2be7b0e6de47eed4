package messageworker

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/shadowspark/support-ai-platform/cmd/mainconfig"
	"github.com/shadowspark/support-ai-platform/internal/app/bootstrap"
	"github.com/shadowspark/support-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	"github.com/shadowspark/support-ai-platform/internal/conversation"
	"github.com/shadowspark/support-ai-platform/internal/escalation"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

// Run starts the async message worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("message worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("message worker cannot run when USE_MEMORY_QUEUE=true; run inline workers via the API process instead")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("message worker requires DATABASE_URL")
	}
	if cfg.MessageQueueURL == "" {
		return fmt.Errorf("message worker requires MESSAGE_QUEUE_URL")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("worker failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessageQueueURL)

	adapter := whatsapp.NewAdapter(whatsapp.Config{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		From:        cfg.TwilioWhatsAppFrom,
		MaxAttempts: cfg.TwilioRetryAttempts,
		RetryBase:   cfg.TwilioRetryBase,
	}, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	emailSender := bootstrap.BuildEmailSender(cfg, sesv2.NewFromConfig(awsCfg), logger)
	notifier := escalation.NewEmailNotifier(emailSender, cfg.EscalationAlertTo)

	pipeline, err := bootstrap.BuildPipeline(ctx, cfg, sqlDB, redisClient, adapter, notifier, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to build message pipeline: %w", err)
	}

	worker := conversation.NewWorker(
		pipeline.Router,
		queue,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithJobRate(float64(cfg.WorkerRate)),
	)

	worker.Start(ctx)
	logger.Info("message workers started",
		"count", cfg.WorkerCount,
		"jobs_per_second", cfg.WorkerRate,
	)

	<-ctx.Done()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("message worker stopped")
	case <-doneCtx.Done():
		logger.Error("message worker shutdown timed out", "error", doneCtx.Err())
	}

	return nil
}
