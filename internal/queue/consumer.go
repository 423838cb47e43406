package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
	pkgerrors "LunaCare/pkg/errors"
	"LunaCare/storage/mq"
)

const (
	processingTTL = 10 * time.Minute
	processedTTL  = 48 * time.Hour
)

// MessageTracker 消息幂等标记
type MessageTracker interface {
	TryMarkProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	UnmarkProcessing(ctx context.Context, messageID string) error
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error
}

// PushHandler 消费推送任务并直接投递到用户端点
type PushHandler struct {
	notifier reminder.Notifier
	// tracker 为空时不做幂等检查
	tracker MessageTracker
	logger  *zap.Logger
}

func NewPushHandler(notifier reminder.Notifier, tracker MessageTracker, logger *zap.Logger) *PushHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushHandler{notifier: notifier, tracker: tracker, logger: logger}
}

// Handle 处理一条 PushNotificationMessage
func (h *PushHandler) Handle(ctx context.Context, body []byte) error {
	var msg model.PushNotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal push notification message: %w", err)
	}

	log := h.logger.With(
		zap.String("message_id", msg.MessageID),
		zap.String("tick_id", msg.TickID),
		zap.Int64("user_id", msg.UserID),
	)

	if h.tracker != nil && msg.MessageID != "" {
		first, err := h.tracker.TryMarkProcessing(ctx, msg.MessageID, processingTTL)
		if err != nil {
			// 检查失败时继续处理，可能重复推送但不丢提醒
			log.Warn("Failed to check message processed status", zap.Error(err))
		} else if !first {
			log.Info("Message already processed or being processed, skipping")
			return &pkgerrors.SkipMessageError{Reason: fmt.Sprintf("message %s already processed", msg.MessageID)}
		}
	}

	results, err := h.notifier.Send(ctx, msg.UserID, msg.Payload)
	if errors.Is(err, reminder.ErrNoEndpoints) {
		h.markProcessed(ctx, log, msg.MessageID)
		return &pkgerrors.SkipMessageError{Reason: fmt.Sprintf("user %d has no push endpoints", msg.UserID)}
	}
	if err == nil && !anyDelivered(results) {
		err = fmt.Errorf("all %d endpoints failed", len(results))
	}
	if err != nil {
		h.unmark(ctx, log, msg.MessageID)
		return fmt.Errorf("failed to deliver push notification: %w", err)
	}

	h.markProcessed(ctx, log, msg.MessageID)
	log.Info("Push notification delivered", zap.Int("endpoints", len(results)))
	return nil
}

func (h *PushHandler) markProcessed(ctx context.Context, log *zap.Logger, messageID string) {
	if h.tracker == nil || messageID == "" {
		return
	}
	if err := h.tracker.MarkProcessed(ctx, messageID, processedTTL); err != nil {
		log.Warn("Failed to mark message as processed", zap.Error(err))
	}
}

func (h *PushHandler) unmark(ctx context.Context, log *zap.Logger, messageID string) {
	if h.tracker == nil || messageID == "" {
		return
	}
	if err := h.tracker.UnmarkProcessing(ctx, messageID); err != nil {
		log.Warn("Failed to unmark message processing", zap.Error(err))
	}
}

func anyDelivered(results []reminder.DeliveryResult) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}

// StartPushConsumer 阻塞消费推送队列直到 ctx 结束
func StartPushConsumer(ctx context.Context, h *PushHandler, prefetch int) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.PushQueue,
		ConsumerTag:   "reminder_push_consumer",
		PrefetchCount: prefetch,
		Handler:       h.Handle,
	})
}
