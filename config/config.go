package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"lunacare"`
	// 运维接口 Bearer token，为空时运维接口全部拒绝
	AdminToken string `env:"ADMIN_TOKEN" envDefault:""`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"lunacare"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"10"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"50"`

	// Redis 配置，REDIS_ADDR 为空时不启用分布式 tick 锁
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"luna"`

	// RabbitMQ 配置，仅 queue 模式需要
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`
	WorkerPrefetch   int    `env:"WORKER_PREFETCH" envDefault:"10"`

	// Web Push (VAPID) 配置
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `env:"VAPID_SUBSCRIBER" envDefault:"mailto:support@lunacare.app"`
	PushTTLSeconds  int    `env:"PUSH_TTL_SECONDS" envDefault:"3600"`

	// 提醒调度配置
	ReminderTickInterval   time.Duration `env:"REMINDER_TICK_INTERVAL" envDefault:"15m"`
	ReminderTickSchedule   string        `env:"REMINDER_TICK_SCHEDULE" envDefault:""` // cron 表达式，例如 */15 * * * *
	ReminderTickTimeout    time.Duration `env:"REMINDER_TICK_TIMEOUT" envDefault:"5m"`
	ReminderCallTimeout    time.Duration `env:"REMINDER_CALL_TIMEOUT" envDefault:"10s"`
	ReminderConcurrency    int           `env:"REMINDER_CONCURRENCY" envDefault:"4"`
	ReminderDefaultMinutes int           `env:"REMINDER_DEFAULT_INTERVAL_MINUTES" envDefault:"60"`
	ReminderTimezone       string        `env:"REMINDER_TIMEZONE" envDefault:"Local"`
	ReminderMarkOnFailure  bool          `env:"REMINDER_MARK_ON_FAILURE" envDefault:"true"`
	ReminderTickLock       bool          `env:"REMINDER_TICK_LOCK" envDefault:"true"`
	ReminderNotifierMode   string        `env:"REMINDER_NOTIFIER_MODE" envDefault:"direct"` // direct, queue

	// Web Push 熔断配置
	PushBreakerMaxFailures  int           `env:"PUSH_BREAKER_MAX_FAILURES" envDefault:"5"`
	PushBreakerResetTimeout time.Duration `env:"PUSH_BREAKER_RESET_TIMEOUT" envDefault:"30s"`

	// 提醒内容，兼容前端 service worker 的通知渲染
	ReminderTitle string `env:"REMINDER_TITLE" envDefault:"Time to hydrate"`
	ReminderBody  string `env:"REMINDER_BODY" envDefault:"You haven't logged any water in a while. Take a sip and log it!"`
	ReminderIcon  string `env:"REMINDER_ICON" envDefault:"/icons/icon-192x192.png"`
	ReminderURL   string `env:"REMINDER_URL" envDefault:"/tracker/water"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置，OTLP_ENDPOINT 为空时不导出
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:""`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`
	TraceSampler   float64 `env:"TRACE_SAMPLER" envDefault:"0.1"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.VAPIDPublicKey == "" || Cfg.VAPIDPrivateKey == "" {
		log.Printf("WARN: VAPID keys are not set, web push delivery will fail")
	}

	if Cfg.ReminderTickInterval <= 0 {
		log.Printf("WARN: REMINDER_TICK_INTERVAL must be positive, falling back to 15m")
		Cfg.ReminderTickInterval = 15 * time.Minute
	}

	if Cfg.ReminderNotifierMode != "direct" && Cfg.ReminderNotifierMode != "queue" {
		log.Printf("WARN: unknown REMINDER_NOTIFIER_MODE %q, falling back to direct", Cfg.ReminderNotifierMode)
		Cfg.ReminderNotifierMode = "direct"
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

// ReminderLocation 解析提醒窗口使用的时区，解析失败时退回本地时区
func (c *Config) ReminderLocation() *time.Location {
	if c.ReminderTimezone == "" || c.ReminderTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		log.Printf("WARN: invalid REMINDER_TIMEZONE %q: %v, using Local", c.ReminderTimezone, err)
		return time.Local
	}
	return loc
}

func (c *Config) UseQueueNotifier() bool {
	return c.ReminderNotifierMode == "queue"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
