package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"LunaCare/pkg/logger"
	"LunaCare/storage/database"
	"LunaCare/storage/mq"
	"LunaCare/storage/redis"
)

// Close 按 MQ、Redis、Database 的顺序关闭连接，未初始化的组件直接跳过
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	log := logger.For("storage")
	log.Info("Closing storage connections...")

	closers := []struct {
		name  string
		close func(context.Context) error
	}{
		{"message queue", mq.Close},
		{"redis", redis.Close},
		{"database", database.Close},
	}

	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			log.Error("Failed to close storage connection", zap.String("name", c.name), zap.Error(err))
			continue
		}
		log.Info("Storage connection closed", zap.String("name", c.name))
	}
}
