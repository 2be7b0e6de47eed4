package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shadowspark/support-ai-platform/cmd/mainconfig"
	"github.com/shadowspark/support-ai-platform/internal/api/router"
	"github.com/shadowspark/support-ai-platform/internal/app/bootstrap"
	"github.com/shadowspark/support-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	"github.com/shadowspark/support-ai-platform/internal/conversation"
	"github.com/shadowspark/support-ai-platform/internal/escalation"
	"github.com/shadowspark/support-ai-platform/internal/http/handlers"
	"github.com/shadowspark/support-ai-platform/internal/observability/metrics"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting support-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := connectPostgres(cfg.DatabaseURL, logger)
	if db == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer db.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	adapter := whatsapp.NewAdapter(whatsapp.Config{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		From:        cfg.TwilioWhatsAppFrom,
		WebhookURL:  cfg.PublicBaseURL + "/webhooks/whatsapp",
		ValidateSig: cfg.TwilioValidateSig,
		MaxAttempts: cfg.TwilioRetryAttempts,
		RetryBase:   cfg.TwilioRetryBase,
	}, logger)

	metricsHandler, pipelineMetrics := setupMetrics()

	var (
		publisher   *conversation.Publisher
		memoryQueue *conversation.MemoryQueue
	)
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory message queue")
		memoryQueue = conversation.NewMemoryQueue(256)
		publisher = conversation.NewPublisher(memoryQueue, logger)
	} else {
		sqsQueue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessageQueueURL)
		publisher = conversation.NewPublisher(sqsQueue, logger)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	emailSender := bootstrap.BuildEmailSender(cfg, sesv2.NewFromConfig(awsCfg), logger)
	notifier := escalation.NewEmailNotifier(emailSender, cfg.EscalationAlertTo)

	pipeline, err := bootstrap.BuildPipeline(ctx, cfg, db, redisClient, adapter, notifier, pipelineMetrics, logger)
	if err != nil {
		logger.Error("failed to build message pipeline", "error", err)
		os.Exit(1)
	}

	// With the in-memory queue the API process consumes its own jobs.
	inlineWorker := setupInlineWorker(ctx, cfg, pipeline.Router, memoryQueue, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		WebhookHandler:     handlers.NewWebhookHandler(adapter, publisher, cfg.DefaultClientID, pipelineMetrics, logger),
		AdminEscalations:   handlers.NewAdminEscalationsHandler(pipeline.Escalations, logger),
		AdminAnalytics:     handlers.NewAdminAnalyticsHandler(pipeline.Analytics, logger),
		AdminConversations: handlers.NewAdminConversationsHandler(pipeline.Store, pipeline.Transcripts, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if inlineWorker != nil {
		waitForWorker(inlineWorker, logger)
	}

	logger.Info("server stopped")
}

// connectPostgres opens a pgx stdlib handle, or returns nil when the
// URL is empty or unreachable.
func connectPostgres(databaseURL string, logger *logging.Logger) *sql.DB {
	if databaseURL == "" {
		return nil
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("failed to open postgres", "error", err)
		return nil
	}
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		_ = db.Close()
		return nil
	}
	return db
}

func setupMetrics() (http.Handler, *metrics.PipelineMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPipelineMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, processor conversation.Processor, memoryQueue *conversation.MemoryQueue, logger *logging.Logger) *conversation.Worker {
	if memoryQueue == nil {
		return nil
	}
	worker := conversation.NewWorker(
		processor,
		memoryQueue,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithJobRate(float64(cfg.WorkerRate)),
	)
	worker.Start(ctx)
	logger.Info("inline message workers started", "count", cfg.WorkerCount)
	return worker
}

func waitForWorker(worker *conversation.Worker, logger *logging.Logger) {
	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("inline message workers stopped")
	case <-doneCtx.Done():
		logger.Error("inline worker shutdown timed out", "error", doneCtx.Err())
	}
}
