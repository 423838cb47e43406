package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// dueWindowCondition 窗口粗筛，char(5) 零填充的 "HH:MM" 按字符串比较即按时间先后比较
// start > end 的窗口跨越午夜
const dueWindowCondition = `((window_start <= window_end AND @now BETWEEN window_start AND window_end)
	OR (window_start > window_end AND (@now >= window_start OR @now <= window_end)))`

// SettingsRepository 提醒设置的 postgres 存储
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

var _ reminder.SettingsStore = (*SettingsRepository)(nil)

// ListDueCandidates 实现 reminder.SettingsStore
// now 的墙钟时间按调用方传入的时区计算
func (r *SettingsRepository) ListDueCandidates(ctx context.Context, now time.Time) ([]*model.ReminderSettings, error) {
	var rows []*model.ReminderSettings
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where(dueWindowCondition, map[string]interface{}{"now": model.TimeOfDayOf(now).String()}).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminder settings: %w", err)
	}
	return rows, nil
}

// UpdateLastSent 实现 reminder.SettingsStore，以读到的 last_sent_at 作为更新条件
func (r *SettingsRepository) UpdateLastSent(ctx context.Context, userID int64, prev *time.Time, sentAt time.Time) error {
	q := r.db.WithContext(ctx).Model(&model.ReminderSettings{}).Where("user_id = ?", userID)
	if prev == nil {
		q = q.Where("last_sent_at IS NULL")
	} else {
		// timestamptz 精度为微秒
		q = q.Where("last_sent_at = ?", prev.Truncate(time.Microsecond))
	}

	result := q.Updates(map[string]interface{}{
		"last_sent_at": sentAt.Truncate(time.Microsecond),
		"updated_at":   gorm.Expr("now()"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update last sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return reminder.ErrStaleSettings
	}
	return nil
}

// GetByUserID 查询用户设置，不存在时返回 ErrNotFound
func (r *SettingsRepository) GetByUserID(ctx context.Context, userID int64) (*model.ReminderSettings, error) {
	var s model.ReminderSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder settings: %w", err)
	}
	return &s, nil
}

// Upsert 写入用户可修改的字段，last_sent_at 只由调度器维护，这里不覆盖
func (r *SettingsRepository) Upsert(ctx context.Context, s *model.ReminderSettings) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"enabled":          s.Enabled,
			"window_start":     s.WindowStart,
			"window_end":       s.WindowEnd,
			"interval_minutes": s.IntervalMinutes,
			"updated_at":       gorm.Expr("now()"),
			"deleted_at":       nil,
		}),
	}).Omit("last_sent_at", "created_at", "updated_at").Create(s).Error
	if err != nil {
		return fmt.Errorf("failed to upsert reminder settings: %w", err)
	}
	return nil
}
