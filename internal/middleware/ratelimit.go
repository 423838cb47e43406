package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"LunaCare/pkg/errors"
	"LunaCare/pkg/logger"
	"LunaCare/pkg/response"
	"LunaCare/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 限流键前缀
	KeyPrefix string
	// 时间窗口
	Window time.Duration
	// 时间窗口内最大请求数
	MaxRequests int
	// 按路径参数 user_id 限流，缺失时退回按 IP
	ByUserID bool
}

// SettingsRateLimitConfig 提醒设置修改限流
var SettingsRateLimitConfig = RateLimitConfig{
	KeyPrefix:   "rate:settings",
	Window:      time.Minute,
	MaxRequests: 10,
	ByUserID:    true,
}

// IntakeRateLimitConfig 饮水记录写入限流
var IntakeRateLimitConfig = RateLimitConfig{
	KeyPrefix:   "rate:intake",
	Window:      time.Minute,
	MaxRequests: 30,
	ByUserID:    true,
}

// RateLimiter 有 Redis 时用 zset 滑动窗口在多实例间共享计数，否则退回进程内令牌桶
type RateLimiter struct {
	client goredis.Cmdable
	prefix string
	config RateLimitConfig
	now    func() time.Time

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(client goredis.Cmdable, prefix string, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		config: config,
		now:    time.Now,
		local:  make(map[string]*rate.Limiter),
	}
}

// localLimiter 按 key 懒加载令牌桶，窗口内最多放行 MaxRequests 次
func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.local[key]
	if !ok {
		every := rl.config.Window / time.Duration(rl.config.MaxRequests)
		limiter = rate.NewLimiter(rate.Every(every), rl.config.MaxRequests)
		rl.local[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) key(c *app.RequestContext) string {
	identifier := "ip:" + c.ClientIP()
	if rl.config.ByUserID {
		if userID := c.Param("user_id"); userID != "" {
			identifier = "user:" + userID
		}
	}
	return redis.JoinKey(rl.prefix, rl.config.KeyPrefix, identifier)
}

// Allow 记录本次请求并返回窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := rl.now()
	if rl.client == nil {
		limiter := rl.localLimiter(key)
		allowed := limiter.AllowN(now, 1)
		used := rl.config.MaxRequests - int(limiter.TokensAt(now))
		return allowed, used, nil
	}

	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(card.Val())
	return count <= rl.config.MaxRequests, count, nil
}

// RateLimitMiddleware limiter 为空时不限流；Redis 出错时放行
func RateLimitMiddleware(limiter *RateLimiter) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if limiter == nil || limiter.config.MaxRequests <= 0 {
			c.Next(ctx)
			return
		}

		allowed, count, err := limiter.Allow(ctx, limiter.key(c))
		if err != nil {
			logger.For("http").Warn("Failed to check rate limit, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := limiter.config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
