package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/internal/bootstrap"
	"LunaCare/internal/handler"
	"LunaCare/internal/middleware"
	"LunaCare/internal/repository"
	"LunaCare/internal/router"
	"LunaCare/internal/service"
	"LunaCare/pkg/logger"
	"LunaCare/pkg/snowflake"
	"LunaCare/storage"
	"LunaCare/storage/database"
)

func main() {
	// 日志部分
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

	shutdownTelemetry := bootstrap.InitTelemetry(ctx, &config.Cfg, "server", logger.Logger)
	defer shutdownTelemetry()

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(storage.Options{
		Redis: true,
		MQ:    config.Cfg.UseQueueNotifier(),
	}); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	db := database.DB()
	rdb := bootstrap.RedisCmdable()

	// 手动 tick 与 cmd/scheduler 共用 Redis 锁，避免同时执行
	scheduler, err := bootstrap.NewScheduler(&config.Cfg, db, rdb, logger.For("reminder"))
	if err != nil {
		logger.Logger.Fatal("Failed to build reminder scheduler", zap.Error(err))
	}

	hd := handler.New(
		service.NewReminderSettingsService(repository.NewSettingsRepository(db), logger.For("settings")),
		service.NewIntakeService(repository.NewIntakeRepository(db), nil, logger.For("intake")),
		service.NewTickService(scheduler, nil),
		logger.For("http"),
	)

	httpMetrics, err := middleware.NewHTTPMetrics(otel.Meter("lunacare"))
	if err != nil {
		logger.Logger.Warn("Failed to initialize HTTP metrics", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("port", config.Cfg.ServerPort),
		zap.String("environment", config.Cfg.Environment),
	)

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	tracer, tracingMiddleware := middleware.NewServerTracerConfig()
	h := server.Default(server.WithHostPorts(addr), tracer)

	router.Register(h, router.Deps{
		Handler:      hd,
		RateLimit:    rdb,
		RedisPrefix:  config.Cfg.RedisPrefix,
		AdminToken:   config.Cfg.AdminToken,
		Tracing:      tracingMiddleware,
		Metrics:      httpMetrics,
		IsProduction: config.Cfg.IsProduction(),
	})

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
