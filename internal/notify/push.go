package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	"LunaCare/internal/reminder"
	"LunaCare/pkg/breaker"
	"LunaCare/pkg/push"
)

// SubscriptionStore 推送订阅的读取与清理
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Sender 单端点推送
type Sender interface {
	Send(ctx context.Context, sub push.Subscription, message []byte) (int, error)
}

// PruneRecorder 记录清理的端点数，可选
type PruneRecorder interface {
	RecordPruned(ctx context.Context, n int)
}

// PushNotifier 通过 web push 向用户所有端点投递，失效端点（404/410）直接删除
type PushNotifier struct {
	subs    SubscriptionStore
	sender  Sender
	breaker *breaker.CircuitBreaker
	pruned  PruneRecorder
	logger  *zap.Logger
}

// PushOption PushNotifier 可选配置
type PushOption func(*PushNotifier)

// WithBreaker 推送服务连续失败时熔断，端点级错误（4xx）不计入
func WithBreaker(cb *breaker.CircuitBreaker) PushOption {
	return func(n *PushNotifier) { n.breaker = cb }
}

func WithPruneRecorder(r PruneRecorder) PushOption {
	return func(n *PushNotifier) { n.pruned = r }
}

func WithLogger(l *zap.Logger) PushOption {
	return func(n *PushNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

func NewPushNotifier(subs SubscriptionStore, sender Sender, opts ...PushOption) *PushNotifier {
	n := &PushNotifier{
		subs:   subs,
		sender: sender,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ reminder.Notifier = (*PushNotifier)(nil)

// Send 实现 reminder.Notifier
func (n *PushNotifier) Send(ctx context.Context, userID int64, payload model.NotificationPayload) ([]reminder.DeliveryResult, error) {
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", reminder.ErrEndpointLookup, err)
	}
	if len(subs) == 0 {
		return nil, reminder.ErrNoEndpoints
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	results := make([]reminder.DeliveryResult, 0, len(subs))
	pruned := 0
	for _, sub := range subs {
		r := n.deliver(ctx, sub, message)
		results = append(results, r)

		if !r.Gone() {
			continue
		}
		if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			n.logger.Warn("Failed to prune gone push endpoint",
				zap.Int64("user_id", userID),
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err),
			)
			continue
		}
		pruned++
		n.logger.Info("Pruned gone push endpoint",
			zap.Int64("user_id", userID),
			zap.String("endpoint", sub.Endpoint),
			zap.Int("status_code", r.StatusCode),
		)
	}

	if pruned > 0 && n.pruned != nil {
		n.pruned.RecordPruned(ctx, pruned)
	}
	return results, nil
}

func (n *PushNotifier) deliver(ctx context.Context, sub *model.PushSubscription, message []byte) reminder.DeliveryResult {
	target := push.Subscription{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}

	var (
		status  int
		sendErr error
	)
	send := func() error {
		status, sendErr = n.sender.Send(ctx, target, message)
		if serviceFailure(status, sendErr) {
			return sendErr
		}
		return nil
	}

	if n.breaker == nil {
		_ = send()
	} else if err := n.breaker.Call(ctx, send); errors.Is(err, breaker.ErrOpen) {
		sendErr = err
	}

	return reminder.DeliveryResult{
		Endpoint:   sub.Endpoint,
		StatusCode: status,
		Err:        sendErr,
	}
}

// serviceFailure 网络错误、限流和 5xx 视为推送服务故障，其余 4xx 是端点自身的问题
func serviceFailure(status int, err error) bool {
	if err == nil {
		return false
	}
	return status == 0 || status == 429 || status >= 500
}
