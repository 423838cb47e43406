package bootstrap

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/pkg/otel"
	"LunaCare/storage/redis"
)

// InitTelemetry 初始化链路追踪和指标导出，失败时只记录日志，返回的 shutdown 始终可调用
func InitTelemetry(ctx context.Context, cfg *config.Config, component string, logger *zap.Logger) func() {
	shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
		ServiceName:    cfg.ServiceName + "-" + component,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampler,
	})
	if err != nil {
		logger.Warn("Failed to initialize OpenTelemetry, telemetry disabled", zap.Error(err))
		return func() {}
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}
}

// RedisCmdable Redis 未启用时返回 nil 接口
func RedisCmdable() goredis.Cmdable {
	if !redis.Enabled() {
		return nil
	}
	return redis.Client()
}
