package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"LunaCare/storage/redis"
)

const (
	messageProcessedPrefix = "msg:processed"
	processingTTL          = 10 * time.Minute
	processedTTL           = 48 * time.Hour
)

// MessageTracker 消息幂等标记，防止 MQ 重投导致重复推送
type MessageTracker struct {
	client goredis.Cmdable
	prefix string
}

func NewMessageTracker(client goredis.Cmdable, prefix string) *MessageTracker {
	return &MessageTracker{client: client, prefix: prefix}
}

func (m *MessageTracker) key(messageID string) string {
	return redis.JoinKey(m.prefix, messageProcessedPrefix, messageID)
}

// TryMarkProcessing 原子性地标记消息正在处理
// 返回 true 表示首次处理，false 表示重复消息或正在处理
func (m *MessageTracker) TryMarkProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = processingTTL
	}

	result, err := m.client.SetNX(ctx, m.key(messageID), "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return result, nil
}

// UnmarkProcessing 处理失败时取消标记，允许重试
func (m *MessageTracker) UnmarkProcessing(ctx context.Context, messageID string) error {
	return m.client.Del(ctx, m.key(messageID)).Err()
}

// MarkProcessed 处理成功后标记为完成并延长 TTL
func (m *MessageTracker) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = processedTTL
	}
	return m.client.Set(ctx, m.key(messageID), "completed", ttl).Err()
}
