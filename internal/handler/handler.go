package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
	"LunaCare/internal/service"
	"LunaCare/pkg/errors"
)

// SettingsService 提醒设置读写
type SettingsService interface {
	Get(ctx context.Context, userID int64) (*model.ReminderSettings, error)
	Update(ctx context.Context, userID int64, req service.UpdateReminderSettingsRequest) (*model.ReminderSettings, error)
}

// IntakeService 饮水记录
type IntakeService interface {
	Log(ctx context.Context, userID int64, req service.LogIntakeRequest) (*model.WaterIntake, error)
}

// TickService 手动触发一轮提醒
type TickService interface {
	Run(ctx context.Context) (*reminder.TickReport, error)
}

// Handler HTTP 接口，依赖由 cmd/server 装配
type Handler struct {
	settings SettingsService
	intake   IntakeService
	tick     TickService
	logger   *zap.Logger
}

func New(settings SettingsService, intake IntakeService, tick TickService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		settings: settings,
		intake:   intake,
		tick:     tick,
		logger:   logger,
	}
}

// parseUserID 解析路径参数 user_id
func parseUserID(c *app.RequestContext) (int64, error) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, errors.InvalidUserID
	}
	return userID, nil
}
