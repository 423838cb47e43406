package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/internal/bootstrap"
	"LunaCare/internal/cache"
	"LunaCare/internal/queue"
	"LunaCare/pkg/logger"
	"LunaCare/pkg/snowflake"
	"LunaCare/storage"
	"LunaCare/storage/database"
	"LunaCare/storage/redis"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	shutdownTelemetry := bootstrap.InitTelemetry(ctx, &config.Cfg, "worker", logger.Logger)
	defer shutdownTelemetry()

	if err := storage.Init(storage.Options{Redis: true, MQ: true}); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	// 消息去重依赖 Redis
	if !redis.Enabled() {
		logger.Logger.Fatal("Worker requires Redis for message de-duplication, set REDIS_ADDR")
	}

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	log := logger.For("worker")
	notifier, err := bootstrap.NewPushNotifier(&config.Cfg, database.DB(), bootstrap.NewReminderMetrics(log), log)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize push notifier", zap.Error(err))
	}

	handler := queue.NewPushHandler(notifier, cache.NewMessageTracker(redis.Client(), config.Cfg.RedisPrefix), log)

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
		zap.Int("prefetch", config.Cfg.WorkerPrefetch),
	)

	if err := queue.StartPushConsumer(ctx, handler, config.Cfg.WorkerPrefetch); err != nil {
		logger.Logger.Error("Push consumer stopped with error", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
