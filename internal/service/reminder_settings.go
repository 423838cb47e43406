package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/internal/repository"
	pkgerrors "LunaCare/pkg/errors"
)

const (
	MinReminderIntervalMinutes = 15
	MaxReminderIntervalMinutes = 24 * 60
)

// SettingsStore 设置读写，last_sent_at 由调度器单独维护
type SettingsStore interface {
	GetByUserID(ctx context.Context, userID int64) (*model.ReminderSettings, error)
	Upsert(ctx context.Context, s *model.ReminderSettings) error
}

// UpdateReminderSettingsRequest 部分更新，未传的字段保持原值
type UpdateReminderSettingsRequest struct {
	Enabled         *bool   `json:"enabled"`
	WindowStart     *string `json:"window_start"`
	WindowEnd       *string `json:"window_end"`
	IntervalMinutes *int    `json:"interval_minutes"`
}

// ReminderSettingsService 用户提醒偏好
type ReminderSettingsService struct {
	store  SettingsStore
	logger *zap.Logger
}

func NewReminderSettingsService(store SettingsStore, logger *zap.Logger) *ReminderSettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderSettingsService{store: store, logger: logger}
}

// Get 返回用户设置，未配置过时返回默认值（未开启）
func (s *ReminderSettingsService) Get(ctx context.Context, userID int64) (*model.ReminderSettings, error) {
	if userID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}

	settings, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewDefaultReminderSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Update 校验并合并请求，写入后返回最新设置
func (s *ReminderSettingsService) Update(ctx context.Context, userID int64, req UpdateReminderSettingsRequest) (*model.ReminderSettings, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := applySettingsUpdate(settings, req); err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save reminder settings: %w", err)
	}

	s.logger.Info("Reminder settings updated",
		zap.Int64("user_id", userID),
		zap.Bool("enabled", settings.Enabled),
		zap.String("window_start", settings.WindowStart.String()),
		zap.String("window_end", settings.WindowEnd.String()),
		zap.Int("interval_minutes", settings.IntervalMinutes),
	)
	return settings, nil
}

func applySettingsUpdate(settings *model.ReminderSettings, req UpdateReminderSettingsRequest) error {
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}

	if req.WindowStart != nil {
		t, err := parseWindowBound(*req.WindowStart)
		if err != nil {
			return pkgerrors.ReminderSettingsInvalid.WithMessage("window_start must be HH:MM")
		}
		settings.WindowStart = t
	}

	if req.WindowEnd != nil {
		t, err := parseWindowBound(*req.WindowEnd)
		if err != nil {
			return pkgerrors.ReminderSettingsInvalid.WithMessage("window_end must be HH:MM")
		}
		settings.WindowEnd = t
	}

	if req.IntervalMinutes != nil {
		minutes := *req.IntervalMinutes
		if minutes < MinReminderIntervalMinutes || minutes > MaxReminderIntervalMinutes {
			return pkgerrors.ReminderSettingsInvalid.WithMessage(
				"interval_minutes must be between %d and %d", MinReminderIntervalMinutes, MaxReminderIntervalMinutes)
		}
		settings.IntervalMinutes = minutes
	}

	if settings.WindowStart == settings.WindowEnd {
		return pkgerrors.ReminderSettingsInvalid.WithMessage("window_start and window_end must differ")
	}
	return nil
}

// parseWindowBound 只接受严格的 HH:MM
func parseWindowBound(s string) (model.TimeOfDay, error) {
	if len(s) != len("15:04") {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return model.ParseTimeOfDay(s)
}
