package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	goredis "github.com/redis/go-redis/v9"

	"LunaCare/internal/handler"
	"LunaCare/internal/middleware"
)

// Deps 路由依赖，可选项为空时对应中间件不启用
type Deps struct {
	Handler *handler.Handler
	// RateLimit 为空时使用进程内限流
	RateLimit   goredis.Cmdable
	RedisPrefix string
	AdminToken  string
	// Tracing 由 middleware.NewServerTracerConfig 创建
	Tracing      app.HandlerFunc
	Metrics      *middleware.HTTPMetrics
	IsProduction bool
}

func Register(h *server.Hertz, deps Deps) {
	if deps.Tracing != nil {
		h.Use(deps.Tracing)
	}
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.RecoverMiddleware(middleware.NewRecoverConfig(deps.IsProduction)))
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.MetricsMiddleware(deps.Metrics))

	h.GET("/healthz", deps.Handler.Healthz)

	settingsLimiter := middleware.NewRateLimiter(deps.RateLimit, deps.RedisPrefix, middleware.SettingsRateLimitConfig)
	intakeLimiter := middleware.NewRateLimiter(deps.RateLimit, deps.RedisPrefix, middleware.IntakeRateLimitConfig)

	v1 := h.Group("/v1")

	// 用户提醒设置与饮水记录
	users := v1.Group("/users/:user_id")
	{
		users.GET("/reminder-settings", deps.Handler.GetReminderSettings)
		users.PUT("/reminder-settings", middleware.RateLimitMiddleware(settingsLimiter), deps.Handler.UpdateReminderSettings)
		users.POST("/water-intakes", middleware.RateLimitMiddleware(intakeLimiter), deps.Handler.LogWaterIntake)
	}

	// 运维接口
	admin := v1.Group("/admin", middleware.AdminAuthMiddleware(deps.AdminToken))
	{
		admin.POST("/reminders/tick", deps.Handler.RunReminderTick)
	}
}
