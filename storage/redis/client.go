package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"LunaCare/config"
	"LunaCare/pkg/logger"
)

var (
	client *redis.Client
	once   sync.Once
	err    error
)

// Init 建立 Redis 连接，REDIS_ADDR 为空时跳过
func Init() error {
	once.Do(func() {
		cfg := config.Cfg
		if cfg.RedisAddr == "" {
			logger.Logger.Info("Redis address not configured, skipping redis init")
			return
		}

		c := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return
		}

		c.AddHook(NewTracingHook(cfg.ServiceName, cfg.RedisDB))
		client = c

		logger.Logger.Info("Redis initialized successfully", zap.String("addr", cfg.RedisAddr))
	})

	return err
}

// Enabled Redis 是否已连接
func Enabled() bool {
	return client != nil
}

func Client() *redis.Client {
	if client == nil {
		panic("Redis client not init")
	}
	return client
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}

	return client.Close()
}

// Key 拼接带前缀的 key，空段会被忽略
func Key(parts ...string) string {
	return JoinKey(config.Cfg.RedisPrefix, parts...)
}

// JoinKey 与 Key 相同，但显式传入前缀
func JoinKey(prefix string, parts ...string) string {
	if prefix == "" {
		prefix = "luna"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}

	return sb.String()
}
