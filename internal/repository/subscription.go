package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"LunaCare/internal/model"
)

// SubscriptionRepository web push 订阅存储
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ListByUser 返回用户全部订阅端点
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]*model.PushSubscription, error) {
	var subs []*model.PushSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteByEndpoint 物理删除已失效的端点
func (r *SubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	err := r.db.WithContext(ctx).Unscoped().
		Where("endpoint = ?", endpoint).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
