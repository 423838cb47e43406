package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"LunaCare/internal/service"
	"LunaCare/pkg/errors"
	"LunaCare/pkg/response"
)

// GetReminderSettings 查询提醒设置，未配置时返回默认值
// GET /v1/users/:user_id/reminder-settings
func (h *Handler) GetReminderSettings(ctx context.Context, c *app.RequestContext) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	settings, err := h.settings.Get(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, settings)
}

// UpdateReminderSettings 修改提醒设置
// PUT /v1/users/:user_id/reminder-settings
func (h *Handler) UpdateReminderSettings(ctx context.Context, c *app.RequestContext) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	var req service.UpdateReminderSettingsRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	settings, err := h.settings.Update(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, settings)
}

// LogWaterIntake 记录一次饮水
// POST /v1/users/:user_id/water-intakes
func (h *Handler) LogWaterIntake(ctx context.Context, c *app.RequestContext) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	var req service.LogIntakeRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	intake, err := h.intake.Log(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, intake)
}

// RunReminderTick 同步执行一轮提醒并返回汇总
// POST /v1/admin/reminders/tick
func (h *Handler) RunReminderTick(ctx context.Context, c *app.RequestContext) {
	if h.tick == nil {
		response.Error(ctx, c, errors.ReminderTickBusy.WithMessage("reminder tick is not available in this process"))
		return
	}

	report, err := h.tick.Run(ctx)
	if err != nil {
		h.logger.Warn("Manual reminder tick failed", zap.Error(err))
		response.Error(ctx, c, err)
		return
	}

	h.logger.Info("Manual reminder tick finished", zap.Object("report", report))
	response.Success(ctx, c, report)
}
