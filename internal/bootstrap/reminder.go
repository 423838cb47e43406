package bootstrap

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"LunaCare/config"
	"LunaCare/internal/cache"
	"LunaCare/internal/model"
	"LunaCare/internal/notify"
	"LunaCare/internal/queue"
	"LunaCare/internal/reminder"
	"LunaCare/internal/repository"
	"LunaCare/pkg/breaker"
	"LunaCare/pkg/metrics"
	"LunaCare/pkg/push"
	"LunaCare/pkg/snowflake"
)

const meterName = "lunacare"

// Payload 由配置生成提醒内容
func Payload(cfg *config.Config) model.NotificationPayload {
	payload := reminder.DefaultPayload()
	if cfg.ReminderTitle != "" {
		payload.Title = cfg.ReminderTitle
	}
	if cfg.ReminderBody != "" {
		payload.Body = cfg.ReminderBody
	}
	payload.Icon = cfg.ReminderIcon
	if cfg.ReminderURL != "" {
		payload.Data = map[string]string{"url": cfg.ReminderURL}
	}
	return payload
}

// ReminderOptions 把环境配置映射为调度器配置
func ReminderOptions(cfg *config.Config) reminder.Options {
	opts := reminder.DefaultOptions()
	opts.NextID = snowflake.NextID
	opts.Location = cfg.ReminderLocation()
	opts.Payload = Payload(cfg)
	opts.TickInterval = cfg.ReminderTickInterval
	opts.Schedule = cfg.ReminderTickSchedule
	opts.TickTimeout = cfg.ReminderTickTimeout
	opts.CallTimeout = cfg.ReminderCallTimeout
	opts.Concurrency = cfg.ReminderConcurrency
	opts.DefaultIntervalMinutes = cfg.ReminderDefaultMinutes
	opts.RetryOnFailure = !cfg.ReminderMarkOnFailure
	return opts
}

// NewReminderMetrics 注册提醒指标，失败时返回 nil，调度器照常运行
func NewReminderMetrics(logger *zap.Logger) *metrics.ReminderMetrics {
	m, err := metrics.NewReminderMetrics(otel.Meter(meterName))
	if err != nil {
		logger.Warn("Failed to initialize reminder metrics", zap.Error(err))
		return nil
	}
	return m
}

// NewPushNotifier 直连 web push 的投递器，worker 和 direct 模式共用
func NewPushNotifier(cfg *config.Config, db *gorm.DB, m *metrics.ReminderMetrics, logger *zap.Logger) (*notify.PushNotifier, error) {
	sender, err := push.NewSender(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
		TTL:             time.Duration(cfg.PushTTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web push sender: %w", err)
	}

	opts := []notify.PushOption{
		notify.WithLogger(logger),
		notify.WithBreaker(breaker.New("web_push", cfg.PushBreakerMaxFailures, cfg.PushBreakerResetTimeout,
			breaker.WithLogger(logger))),
	}
	if m != nil {
		opts = append(opts, notify.WithPruneRecorder(m))
	}

	return notify.NewPushNotifier(repository.NewSubscriptionRepository(db), sender, opts...), nil
}

// NewNotifier 按 REMINDER_NOTIFIER_MODE 选择投递方式
func NewNotifier(cfg *config.Config, db *gorm.DB, m *metrics.ReminderMetrics, logger *zap.Logger) (reminder.Notifier, error) {
	if cfg.UseQueueNotifier() {
		return notify.NewQueueNotifier(queue.PublishPushNotification, snowflake.NextID, logger), nil
	}
	return NewPushNotifier(cfg, db, m, logger)
}

// NewScheduler 装配提醒调度器，rdb 为空或关闭 tick 锁时只做进程内防重入
func NewScheduler(cfg *config.Config, db *gorm.DB, rdb goredis.Cmdable, logger *zap.Logger) (*reminder.Scheduler, error) {
	m := NewReminderMetrics(logger)

	notifier, err := NewNotifier(cfg, db, m, logger)
	if err != nil {
		return nil, err
	}

	deps := reminder.Dependencies{
		Settings: repository.NewSettingsRepository(db),
		Activity: repository.NewIntakeRepository(db),
		Notifier: notifier,
		Logger:   logger,
	}
	if m != nil {
		deps.Recorder = m
	}
	if rdb != nil && cfg.ReminderTickLock {
		deps.Locker = cache.NewRedisLocker(rdb, cfg.RedisPrefix)
	}

	return reminder.New(deps, ReminderOptions(cfg))
}
