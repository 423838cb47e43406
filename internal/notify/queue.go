package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
)

// QueueEndpoint QueueNotifier 返回的虚拟端点名
const QueueEndpoint = "queue"

// PublishFunc 发布一条推送任务
type PublishFunc func(ctx context.Context, msg model.PushNotificationMessage) error

// QueueNotifier 把推送交给 worker 异步投递，消息发布成功即视为投递成功
type QueueNotifier struct {
	publish PublishFunc
	nextID  func() (int64, error)
	now     func() time.Time
	logger  *zap.Logger
}

func NewQueueNotifier(publish PublishFunc, nextID func() (int64, error), logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{
		publish: publish,
		nextID:  nextID,
		now:     time.Now,
		logger:  logger,
	}
}

var _ reminder.Notifier = (*QueueNotifier)(nil)

// Send 实现 reminder.Notifier
func (n *QueueNotifier) Send(ctx context.Context, userID int64, payload model.NotificationPayload) ([]reminder.DeliveryResult, error) {
	id, err := n.nextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message ID: %w", err)
	}

	msg := model.PushNotificationMessage{
		MessageID:   fmt.Sprintf("push_%d", id),
		TickID:      reminder.TickIDFromContext(ctx),
		UserID:      userID,
		Payload:     payload,
		ScheduledAt: n.now().UTC().Format(time.RFC3339),
	}

	if err := n.publish(ctx, msg); err != nil {
		return []reminder.DeliveryResult{{Endpoint: QueueEndpoint, Err: err}}, nil
	}

	n.logger.Debug("Queued push notification",
		zap.String("message_id", msg.MessageID),
		zap.String("tick_id", msg.TickID),
		zap.Int64("user_id", userID),
	)
	return []reminder.DeliveryResult{{Endpoint: QueueEndpoint}}, nil
}
