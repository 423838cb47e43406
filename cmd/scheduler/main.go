package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/internal/bootstrap"
	"LunaCare/pkg/logger"
	"LunaCare/pkg/snowflake"
	"LunaCare/storage"
	"LunaCare/storage/database"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	shutdownTelemetry := bootstrap.InitTelemetry(ctx, &config.Cfg, "scheduler", logger.Logger)
	defer shutdownTelemetry()

	// tick 锁依赖 Redis，queue 模式需要 MQ
	if err := storage.Init(storage.Options{
		Redis: config.Cfg.ReminderTickLock,
		MQ:    config.Cfg.UseQueueNotifier(),
	}); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	scheduler, err := bootstrap.NewScheduler(&config.Cfg, database.DB(), bootstrap.RedisCmdable(), logger.For("reminder"))
	if err != nil {
		logger.Logger.Fatal("Failed to build reminder scheduler", zap.Error(err))
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.String("notifier_mode", config.Cfg.ReminderNotifierMode),
	)

	done, err := scheduler.Start(ctx)
	if err != nil {
		logger.Logger.Fatal("Failed to start reminder scheduler", zap.Error(err))
	}

	<-done

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
