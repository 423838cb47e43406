package queue

import (
	"context"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/pkg/logger"
	"LunaCare/storage/mq"
)

// PublishPushNotification 发布推送任务，由 worker 消费
func PublishPushNotification(ctx context.Context, msg model.PushNotificationMessage) error {
	err := mq.PublishMessage(ctx, mq.ReminderExchange, mq.PushRoutingKey, msg.MessageID, msg)
	if err != nil {
		logger.For("queue").Error("Failed to publish push notification message",
			zap.String("message_id", msg.MessageID),
			zap.Int64("user_id", msg.UserID),
			zap.Error(err),
		)
		return err
	}

	logger.For("queue").Debug("Published push notification message",
		zap.String("message_id", msg.MessageID),
		zap.String("tick_id", msg.TickID),
		zap.Int64("user_id", msg.UserID),
	)
	return nil
}
