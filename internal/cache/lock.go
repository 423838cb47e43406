package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"LunaCare/internal/reminder"
	"LunaCare/storage/redis"
)

// 基于 SETNX 的分布式锁，多个调度实例共用同一把 tick 锁
const lockPrefix = "lock"

// 只删除自己持有的锁，避免锁过期后误删其他实例的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 实现 reminder.Locker
type RedisLocker struct {
	client goredis.Cmdable
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLocker(client goredis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		tokens: make(map[string]string),
	}
}

var _ reminder.Locker = (*RedisLocker)(nil)

func (l *RedisLocker) key(key string) string {
	return redis.JoinKey(l.prefix, lockPrefix, key)
}

// TryLock 获取锁，ttl 到期后自动释放
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Unlock 释放本实例持有的锁，未持有时不做任何事
func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	if err := unlockScript.Run(ctx, l.client, []string{l.key(key)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
