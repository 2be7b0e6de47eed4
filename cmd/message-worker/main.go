package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
	messageworker "github.com/shadowspark/support-ai-platform/internal/worker/message"
	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down message worker...")
		cancel()
	}()

	if err := messageworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("message worker exited", "error", err)
		os.Exit(1)
	}
}
