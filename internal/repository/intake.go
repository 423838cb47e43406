package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
)

// IntakeRepository 饮水记录存储，同时作为调度器的活动来源
type IntakeRepository struct {
	db *gorm.DB
}

func NewIntakeRepository(db *gorm.DB) *IntakeRepository {
	return &IntakeRepository{db: db}
}

var _ reminder.ActivityStore = (*IntakeRepository)(nil)

// GetLastActivity 返回用户最近一次饮水记录时间，没有记录时返回 nil
func (r *IntakeRepository) GetLastActivity(ctx context.Context, userID int64) (*time.Time, error) {
	var intake model.WaterIntake
	err := r.db.WithContext(ctx).
		Select("logged_at").
		Where("user_id = ?", userID).
		Order("logged_at DESC").
		Take(&intake).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last water intake: %w", err)
	}
	t := intake.LoggedAt
	return &t, nil
}

// Create 写入一条饮水记录
func (r *IntakeRepository) Create(ctx context.Context, intake *model.WaterIntake) error {
	if err := r.db.WithContext(ctx).Create(intake).Error; err != nil {
		return fmt.Errorf("failed to create water intake: %w", err)
	}
	return nil
}
