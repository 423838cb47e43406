package model

import "time"

// 默认提醒设置，用户首次配置提醒时使用
const (
	DefaultReminderIntervalMinutes = 60
	DefaultReminderWindowStart     = TimeOfDay(8 * 60)
	DefaultReminderWindowEnd       = TimeOfDay(22 * 60)
)

// ReminderSettings 用户的饮水提醒设置，每个用户一行
// 用户通过偏好设置修改，调度器只回写 LastSentAt
type ReminderSettings struct {
	BaseModel
	UserID          int64      `gorm:"uniqueIndex;not null" json:"user_id"`
	Enabled         bool       `gorm:"not null;default:false;index:idx_reminder_settings_due" json:"enabled"`
	WindowStart     TimeOfDay  `gorm:"type:char(5);not null;default:'08:00';index:idx_reminder_settings_due" json:"window_start"`
	WindowEnd       TimeOfDay  `gorm:"type:char(5);not null;default:'22:00';index:idx_reminder_settings_due" json:"window_end"`
	IntervalMinutes int        `gorm:"type:smallint;not null;default:60" json:"interval_minutes"`
	LastSentAt      *time.Time `gorm:"type:timestamptz" json:"last_sent_at,omitempty"`
}

// TableName 指定表名
func (ReminderSettings) TableName() string {
	return "reminder_settings"
}

// NewDefaultReminderSettings 返回用户的默认提醒设置（未开启）
func NewDefaultReminderSettings(userID int64) *ReminderSettings {
	return &ReminderSettings{
		UserID:          userID,
		Enabled:         false,
		WindowStart:     DefaultReminderWindowStart,
		WindowEnd:       DefaultReminderWindowEnd,
		IntervalMinutes: DefaultReminderIntervalMinutes,
	}
}

// Interval 返回提醒间隔，未设置或非法时使用 fallback
func (s *ReminderSettings) Interval(fallbackMinutes int) time.Duration {
	minutes := s.IntervalMinutes
	if minutes <= 0 {
		minutes = fallbackMinutes
	}
	if minutes <= 0 {
		minutes = DefaultReminderIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// InWindow 判断 now 的墙钟时间是否落在提醒窗口内（闭区间）
func (s *ReminderSettings) InWindow(now time.Time) bool {
	return TimeOfDayOf(now).Within(s.WindowStart, s.WindowEnd)
}
